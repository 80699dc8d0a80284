package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/report"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	flag := cmd.Flags().Lookup("output")
	if flag == nil {
		t.Fatal("expected output flag")
	}
	if flag.Shorthand != "o" || flag.DefValue != config.DefaultConfigFile {
		t.Errorf("output flag: shorthand %q default %q", flag.Shorthand, flag.DefValue)
	}

	flag = cmd.Flags().Lookup("force")
	if flag == nil {
		t.Fatal("expected force flag")
	}
	if flag.Shorthand != "f" || flag.DefValue != "false" {
		t.Errorf("force flag: shorthand %q default %q", flag.Shorthand, flag.DefValue)
	}
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Run("creates a loadable config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layouts", "form.yaml")

		code, stdout, stderr := run(t, "init", "-o", path)
		if code != report.ExitOK {
			t.Fatalf("exit code %d, stderr: %s", code, stderr)
		}
		if !strings.Contains(stdout, path) {
			t.Errorf("expected path in output, got %q", stdout)
		}

		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("load written config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("written config does not validate: %v", err)
		}
		if len(cfg.Zones) != 3 || cfg.Zones[1].Label != "PS" || cfg.Zones[1].Strategy != config.StrategyDetect {
			t.Errorf("zones = %+v", cfg.Zones)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "formcrop.yaml")
		if err := os.WriteFile(path, []byte("custom"), 0o644); err != nil {
			t.Fatal(err)
		}

		code, _, stderr := run(t, "init", "-o", path)
		if code != report.ExitFatal {
			t.Fatalf("exit code %d, want %d", code, report.ExitFatal)
		}
		if !strings.Contains(stderr, "already exists") {
			t.Errorf("unexpected stderr %q", stderr)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "custom" {
			t.Error("existing file was modified")
		}

		if code, _, stderr := run(t, "init", "-f", "-o", path); code != report.ExitOK {
			t.Fatalf("forced init exit code %d, stderr: %s", code, stderr)
		}
		data, _ = os.ReadFile(path)
		if string(data) == "custom" {
			t.Error("forced init did not overwrite")
		}
	})
}
