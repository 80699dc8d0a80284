package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formcrop/formcrop/internal/batch"
	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/engine"
	"github.com/formcrop/formcrop/internal/report"
	"github.com/formcrop/formcrop/internal/system"
)

// NewProcessCmd creates the process command.
func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <file|dir>...",
		Short: "Crop and size-fit scans that are already on disk",
		Long: `Process runs each given scan through the pipeline and writes FORM.jpg plus
one <LABEL>.jpg per zone.

A file argument is written next to itself, or into --out. A directory
argument is expanded according to --mode:
  folders  the first image of every numbered subdirectory (1, 2, 3, ...)
  tree     every image anywhere below the directory

Files named after an output label (FORM.jpg, PH.jpg, ...) are never used
as sources.

Exit status is 0 when every label was written, 2 when an item failed to
decode or a label was not found, and 1 on configuration errors. With
--strict, outputs saved outside their size limit also yield 2.

Examples:
  formcrop process scan.jpg
  formcrop process --mode folders INCOMING
  formcrop process --latest INCOMING --out INCOMING/42
  formcrop process --mode tree archive --report markdown --report-file run.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runProcessCmd,
	}

	cmd.Flags().StringP("mode", "m", string(batch.ModeFolders), "How directories are scanned: folders or tree")
	cmd.Flags().StringP("out", "o", "", "Output directory for file arguments (default: the file's directory)")
	cmd.Flags().Bool("latest", false, "Process only the most recently modified image in each directory argument")
	cmd.Flags().Bool("strict", false, "Treat outputs outside their size limit as failures")
	cmd.Flags().StringP("report", "r", "text", "Report format: text, json or markdown")
	cmd.Flags().String("report-file", "", "Write the report to this file instead of stdout")
	addDetectionFlags(cmd)

	return cmd
}

// processOptions holds the parsed process flags.
type processOptions struct {
	mode       batch.Mode
	out        string
	latest     bool
	strict     bool
	format     string
	reportFile string
}

func parseProcessFlags(cmd *cobra.Command) (processOptions, error) {
	var (
		opts processOptions
		err  error
	)
	flags := cmd.Flags()

	mode, err := flags.GetString("mode")
	if err != nil {
		return opts, err
	}
	if opts.mode, err = batch.ParseMode(mode); err != nil {
		return opts, err
	}
	if opts.out, err = flags.GetString("out"); err != nil {
		return opts, err
	}
	if opts.latest, err = flags.GetBool("latest"); err != nil {
		return opts, err
	}
	if opts.strict, err = flags.GetBool("strict"); err != nil {
		return opts, err
	}
	if opts.format, err = flags.GetString("report"); err != nil {
		return opts, err
	}
	if opts.reportFile, err = flags.GetString("report-file"); err != nil {
		return opts, err
	}
	return opts, nil
}

func runProcessCmd(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	opts, err := parseProcessFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	if err := applyDetectionFlags(cmd, &cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.reportFile != "" {
		f, err := os.Create(opts.reportFile)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}
	writer, err := report.NewWriter(opts.format, out)
	if err != nil {
		return err
	}

	items, err := collectItems(args, opts, cfg)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logger.Warn("nothing to process", "args", args)
	}

	db, closeDB, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	procOpts := []engine.Option{engine.WithLogger(logger)}
	if db != nil {
		procOpts = append(procOpts, engine.WithRecorder(db))
	}
	proc, err := engine.New(cfg, procOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := batch.Run(ctx, proc, items, logger)
	return finishReport(writer, results, opts.strict, logger)
}

// collectItems expands the command arguments into work items.
func collectItems(args []string, opts processOptions, cfg config.Config) ([]batch.Item, error) {
	var items []batch.Item
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		switch {
		case !info.IsDir():
			items = append(items, fileItem(arg, opts.out))
		case opts.latest:
			latest, err := system.FindLatestImage(arg, batch.SourceFilter(cfg.Labels()))
			if err != nil {
				return nil, err
			}
			items = append(items, fileItem(latest, opts.out))
		default:
			found, err := batch.Discover(arg, opts.mode, cfg.Labels())
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", arg, err)
			}
			items = append(items, found...)
		}
	}
	return items, nil
}

func fileItem(path, out string) batch.Item {
	if out == "" {
		out = filepath.Dir(path)
	}
	return batch.Item{Source: path, OutputDir: out}
}

// finishReport writes the run report and converts failures into an exit code.
func finishReport(w report.Writer, results []engine.ItemResult, strict bool, logger *slog.Logger) error {
	r := report.New(results)
	if err := w.Write(r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if code := r.ExitCode(strict); code != report.ExitOK {
		logger.Debug("run finished with failures", "exit_code", code)
		return &exitError{code: code}
	}
	return nil
}
