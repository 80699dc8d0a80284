package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/formcrop/formcrop/internal/config"
)

// NotifyWatcher reacts to filesystem create events instead of polling.
// Files moved into the directory show up as creates too.
type NotifyWatcher struct {
	base
}

// NewNotifyWatcher returns an event-driven watcher for cfg.Dir. It can be
// started once.
func NewNotifyWatcher(cfg config.Watch, opts ...Option) *NotifyWatcher {
	w := &NotifyWatcher{}
	w.init(cfg, opts)
	return w
}

func (w *NotifyWatcher) Start(ctx context.Context) (<-chan string, error) {
	dir, err := absDir(w.cfg.Dir)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	var existing []string
	if w.cfg.ProcessExisting {
		if existing, err = listCandidates(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	ch, err := w.launch(ctx, func(ctx context.Context, out chan<- string) {
		defer fw.Close()
		w.logger.Info("watching", "dir", dir, "mode", config.WatchNotify)

		for _, n := range existing {
			if !w.deliver(ctx, out, filepath.Join(dir, n)) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) || !isCandidate(filepath.Base(ev.Name)) {
					continue
				}
				if !w.deliver(ctx, out, ev.Name) {
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("fsnotify error", "error", err)
			}
		}
	})
	if err != nil {
		fw.Close()
	}
	return ch, err
}
