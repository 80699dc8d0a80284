package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formcrop/formcrop/internal/report"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "formcrop" {
		t.Errorf("expected use 'formcrop', got %q", cmd.Use)
	}
	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	for _, name := range []string{"config", "verbose", "log-format"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q", name)
		}
	}

	want := map[string]bool{"process": false, "watch": false, "init": false, "history": false, "version": false}
	for _, sub := range cmd.Commands() {
		want[sub.Name()] = true
	}
	for name, ok := range want {
		if !ok {
			t.Errorf("expected %s subcommand", name)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := setupLogger(&buf, true, "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON debug line, got %q", buf.String())
	}

	if _, err := setupLogger(&buf, false, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

// testConfig is a 200x100 layout with a direct PH zone and a detected PS zone.
const testConfig = `canvas: {width: 200, height: 100}
zones:
  - {label: PH, rect: [10, 10, 60, 60]}
  - {label: PS, rect: [100, 20, 190, 80], strategy: detect}
limits:
  FORM: {min_kb: 1, max_kb: 100}
  PH: {min_kb: 1, max_kb: 100}
  PS: {min_kb: 1, max_kb: 100}
min_free_mb: 0
history:
  enabled: false
  dir: %q
`

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "formcrop.yaml")
	data := fmt.Sprintf(testConfig, filepath.Join(dir, "history"))
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeScan writes a 400x200 white page, optionally with a black block that
// lands inside the PS zone after normalization.
func writeScan(t *testing.T, path string, signed bool) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 400, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	if signed {
		for y := 50; y < 130; y++ {
			for x := 220; x < 340; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	code := execute(cmd, args, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestProcessCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	signed := filepath.Join(dir, "signed.png")
	writeScan(t, signed, true)
	blank := filepath.Join(dir, "blank.png")
	writeScan(t, blank, false)

	t.Run("signed scan exits zero", func(t *testing.T) {
		out := filepath.Join(dir, "out-signed")
		code, stdout, stderr := run(t, "process", "-c", cfgPath, "-o", out, "-r", "json", signed)
		if code != report.ExitOK {
			t.Fatalf("exit code %d, stderr: %s", code, stderr)
		}

		var r report.Report
		if err := json.Unmarshal([]byte(stdout), &r); err != nil {
			t.Fatalf("decode report: %v\n%s", err, stdout)
		}
		if r.Summary.Items != 1 || r.Summary.Failed != 0 || r.Summary.NotFound != 0 {
			t.Errorf("summary = %+v", r.Summary)
		}
		for _, name := range []string{"FORM.jpg", "PH.jpg", "PS.jpg"} {
			if _, err := os.Stat(filepath.Join(out, name)); err != nil {
				t.Errorf("missing %s: %v", name, err)
			}
		}
	})

	t.Run("blank signature exits two", func(t *testing.T) {
		out := filepath.Join(dir, "out-blank")
		code, _, stderr := run(t, "process", "-c", cfgPath, "-o", out, blank)
		if code != report.ExitItemFailures {
			t.Fatalf("exit code %d, want %d, stderr: %s", code, report.ExitItemFailures, stderr)
		}
		if _, err := os.Stat(filepath.Join(out, "PS.jpg")); !os.IsNotExist(err) {
			t.Errorf("PS.jpg should not be written for a blank zone, stat err = %v", err)
		}
		if _, err := os.Stat(filepath.Join(out, "FORM.jpg")); err != nil {
			t.Errorf("FORM.jpg missing: %v", err)
		}
	})

	t.Run("missing config exits one", func(t *testing.T) {
		code, _, stderr := run(t, "process", "-c", filepath.Join(dir, "nope.yaml"), signed)
		if code != report.ExitFatal {
			t.Fatalf("exit code %d, want %d", code, report.ExitFatal)
		}
		if !strings.Contains(stderr, "Error:") {
			t.Errorf("expected error message, got %q", stderr)
		}
	})

	t.Run("bad mode exits one", func(t *testing.T) {
		code, _, _ := run(t, "process", "-c", cfgPath, "--mode", "sideways", dir)
		if code != report.ExitFatal {
			t.Fatalf("exit code %d, want %d", code, report.ExitFatal)
		}
	})
}

func TestProcessFoldersWithHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	root := filepath.Join(dir, "incoming")
	for _, n := range []string{"2", "10"} {
		if err := os.MkdirAll(filepath.Join(root, n), 0o755); err != nil {
			t.Fatal(err)
		}
		writeScan(t, filepath.Join(root, n, "original.png"), true)
	}

	code, _, stderr := run(t, "process", "-c", cfgPath, "--history", "--mode", "folders", root)
	if code != report.ExitOK {
		t.Fatalf("process exit code %d, stderr: %s", code, stderr)
	}
	for _, n := range []string{"2", "10"} {
		if _, err := os.Stat(filepath.Join(root, n, "FORM.jpg")); err != nil {
			t.Errorf("folder %s: %v", n, err)
		}
	}

	code, stdout, stderr := run(t, "history", "-c", cfgPath, "--format", "json")
	if code != report.ExitOK {
		t.Fatalf("history exit code %d, stderr: %s", code, stderr)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatalf("decode history: %v\n%s", err, stdout)
	}
	if r.Summary.Items != 2 {
		t.Errorf("history items = %d, want 2", r.Summary.Items)
	}

	// A second run must not pick up its own outputs.
	code, stdout, _ = run(t, "process", "-c", cfgPath, "-r", "json", "--mode", "tree", root)
	if code != report.ExitOK {
		t.Fatalf("second run exit code %d", code)
	}
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatal(err)
	}
	if r.Summary.Items != 2 {
		t.Errorf("tree run found %d items, want 2", r.Summary.Items)
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	code, _, _ := run(t, "history", "-c", cfgPath)
	if code != report.ExitFatal {
		t.Errorf("exit code %d, want %d", code, report.ExitFatal)
	}
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := run(t, "version")
	if code != report.ExitOK {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(stdout, "formcrop version ") {
		t.Errorf("unexpected output %q", stdout)
	}
}
