package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/engine"
	"github.com/formcrop/formcrop/internal/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch an incoming directory and process new scans",
		Long: `Watch monitors a directory (default: watch.dir from the configuration,
"INCOMING" out of the box). Every new image is moved into the next numbered
subfolder as original<ext>, processed there, and the original is removed
unless --keep-original is set. Scans that fail to decode keep their original.

Files already present when the watcher starts are ignored unless
--process-existing is given. Stop with Ctrl+C; the scan in progress finishes
its current label and the watcher exits cleanly.

Examples:
  formcrop watch
  formcrop watch --notify --settle 2s /srv/scans
  formcrop watch --claim-only INCOMING`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatchCmd,
	}

	cmd.Flags().Bool("notify", false, "Use filesystem events instead of polling")
	cmd.Flags().Duration("interval", config.DefaultPollInterval, "Polling interval")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay, "Wait this long, and for a stable size, before claiming a file")
	cmd.Flags().Int("queue", config.DefaultQueueSize, "Maximum number of detected files waiting to be processed")
	cmd.Flags().Bool("keep-original", false, "Keep original<ext> next to the crops")
	cmd.Flags().Bool("process-existing", false, "Also process images present at startup")
	cmd.Flags().Bool("claim-only", false, "Only move new scans into numbered folders, keeping their names")
	addDetectionFlags(cmd)

	return cmd
}

func applyWatchFlags(cmd *cobra.Command, args []string, w *config.Watch) error {
	flags := cmd.Flags()
	if len(args) == 1 {
		w.Dir = args[0]
	}

	var err error
	if flags.Changed("notify") {
		notify, err := flags.GetBool("notify")
		if err != nil {
			return err
		}
		w.Mode = config.WatchPoll
		if notify {
			w.Mode = config.WatchNotify
		}
	}
	if flags.Changed("interval") {
		if w.PollInterval, err = flags.GetDuration("interval"); err != nil {
			return err
		}
	}
	if flags.Changed("settle") {
		if w.SettleDelay, err = flags.GetDuration("settle"); err != nil {
			return err
		}
	}
	if flags.Changed("queue") {
		if w.QueueSize, err = flags.GetInt("queue"); err != nil {
			return err
		}
	}
	if flags.Changed("keep-original") {
		if w.KeepOriginal, err = flags.GetBool("keep-original"); err != nil {
			return err
		}
	}
	if flags.Changed("process-existing") {
		if w.ProcessExisting, err = flags.GetBool("process-existing"); err != nil {
			return err
		}
	}
	return nil
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
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
	if err := applyWatchFlags(cmd, args, &cfg.Watch); err != nil {
		return err
	}
	claimOnly, err := cmd.Flags().GetBool("claim-only")
	if err != nil {
		return err
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
	// Validates the configuration before anything is moved.
	proc, err := engine.New(cfg, procOpts...)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
		return err
	}
	w, err := watch.New(cfg.Watch, watch.WithLogger(logger))
	if err != nil {
		return err
	}

	d := &watch.Dispatcher{
		Dir:          cfg.Watch.Dir,
		Processor:    proc,
		KeepOriginal: cfg.Watch.KeepOriginal,
		ClaimOnly:    claimOnly,
		Logger:       logger,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch.Run(ctx, w, d.Handle); err != nil {
		return err
	}
	logger.Info("watcher stopped")
	return nil
}
