package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/database"
	"github.com/formcrop/formcrop/internal/report"
)

// exitError carries a non-zero exit code that is not a fatal error, such as
// a batch in which some labels were not found.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formcrop",
		Short: "Crop photo and signature zones out of scanned forms",
		Long: `formcrop normalizes scanned application forms to an A4 raster, cuts the
configured zones (photo, parent signature, student signature) plus the full
page, and re-encodes each one as a JPEG inside its size limit.

Configuration is read from --config, ./formcrop.yaml or
$XDG_CONFIG_HOME/formcrop/config.yaml, in that order. Run "formcrop init"
to write the defaults to a file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(NewProcessCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return report.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return report.ExitFatal
}

// setupLogger creates a structured logger on w.
func setupLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// loggerFromFlags builds the logger from the persistent flags and installs it
// as the slog default.
func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}
	logger, err := setupLogger(cmd.ErrOrStderr(), verbose, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// loadConfig resolves and reads the configuration file, falling back to the
// built-in defaults when none exists. An explicit --config must exist.
func loadConfig(cmd *cobra.Command, logger *slog.Logger) (config.Config, error) {
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	path := explicit
	if path == "" {
		path = config.FindConfigFile("")
	}
	if path == "" {
		logger.Debug("no configuration file found, using defaults")
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	logger.Debug("loaded configuration", "file", path)
	return cfg, nil
}

// applyDetectionFlags overrides detection and codec settings from flags that
// were set explicitly.
func applyDetectionFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("select") {
		s, err := flags.GetString("select")
		if err != nil {
			return err
		}
		cfg.Detection.Select = config.Selection(s)
	}
	if flags.Changed("detector") {
		s, err := flags.GetString("detector")
		if err != nil {
			return err
		}
		cfg.Detection.Backend = s
	}
	if flags.Changed("codec") {
		s, err := flags.GetString("codec")
		if err != nil {
			return err
		}
		cfg.Codec = s
	}
	if flags.Changed("history") {
		on, err := flags.GetBool("history")
		if err != nil {
			return err
		}
		cfg.History.Enabled = on
	}
	return nil
}

func addDetectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("select", string(config.SelectLargest), "Region tie-break when several blobs qualify: largest or first")
	cmd.Flags().String("detector", "threshold", "Detector backend (threshold, or opencv when built with -tags gocv)")
	cmd.Flags().String("codec", "stdlib", "JPEG codec (stdlib, or opencv when built with -tags gocv)")
	cmd.Flags().Bool("history", false, "Record results in the history database")
}

// openHistory opens the ledger when enabled. The returned close func is never nil.
func openHistory(cfg config.Config, logger *slog.Logger) (*database.HistoryDB, func(), error) {
	if !cfg.History.Enabled {
		return nil, func() {}, nil
	}
	db, err := database.Open(cfg.History.Dir, database.DefaultOptions())
	if err != nil {
		return nil, func() {}, err
	}
	logger.Debug("recording history", "db", db.Path())
	return db, func() { _ = db.Close() }, nil
}
