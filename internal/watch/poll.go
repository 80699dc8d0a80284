package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/formcrop/formcrop/internal/config"
)

// PollWatcher lists the directory every PollInterval and reports names that
// were not there on the previous listing.
type PollWatcher struct {
	base
}

// NewPollWatcher returns a watcher for cfg.Dir. It can be started once.
func NewPollWatcher(cfg config.Watch, opts ...Option) *PollWatcher {
	w := &PollWatcher{}
	w.init(cfg, opts)
	return w
}

func (w *PollWatcher) Start(ctx context.Context) (<-chan string, error) {
	dir, err := absDir(w.cfg.Dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	if !w.cfg.ProcessExisting {
		names, err := listCandidates(dir)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			seen[n] = true
		}
	}

	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}

	return w.launch(ctx, func(ctx context.Context, out chan<- string) {
		w.logger.Info("watching", "dir", dir, "mode", config.WatchPoll, "interval", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if !w.scan(ctx, dir, seen, out) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

// scan diffs the directory against seen and delivers new files. seen is
// replaced by the current listing so files that leave and come back are
// reported again.
func (w *PollWatcher) scan(ctx context.Context, dir string, seen map[string]bool, out chan<- string) bool {
	names, err := listCandidates(dir)
	if err != nil {
		w.logger.Warn("listing failed", "dir", dir, "error", err)
		return true
	}

	var fresh []string
	current := make(map[string]bool, len(names))
	for _, n := range names {
		current[n] = true
		if !seen[n] {
			fresh = append(fresh, n)
		}
	}
	clear(seen)
	for n := range current {
		seen[n] = true
	}

	for _, n := range fresh {
		if !w.deliver(ctx, out, filepath.Join(dir, n)) {
			return false
		}
	}
	return true
}
