// Package watch detects scans dropped into an incoming directory and hands
// them, one at a time, to a processing callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/source"
)

var (
	ErrAlreadyStarted = errors.New("watcher already started")
	// ErrWatcherClosed means the event stream ended while the caller was
	// still running.
	ErrWatcherClosed = errors.New("watcher stopped unexpectedly")
)

// Watcher delivers paths of new, fully written image files.
type Watcher interface {
	// Start begins watching. The returned channel is closed once the watcher
	// stops, either through Stop or ctx cancellation.
	Start(ctx context.Context) (<-chan string, error)
	// Stop ends watching and waits for the detection goroutine to exit.
	Stop() error
}

// Option configures a watcher.
type Option func(*base)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// New returns the watcher selected by cfg.Mode.
func New(cfg config.Watch, opts ...Option) (Watcher, error) {
	switch cfg.Mode {
	case config.WatchPoll, "":
		return NewPollWatcher(cfg, opts...), nil
	case config.WatchNotify:
		return NewNotifyWatcher(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("%w: mode %q", config.ErrInvalidWatch, cfg.Mode)
	}
}

// base holds the start/stop lifecycle and settle logic shared by watchers.
type base struct {
	cfg    config.Watch
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (b *base) init(cfg config.Watch, opts []Option) {
	b.cfg, b.logger = cfg, slog.Default()
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg.QueueSize <= 0 {
		b.cfg.QueueSize = config.DefaultQueueSize
	}
}

// launch runs loop in its own goroutine with a bounded output channel.
func (b *base) launch(ctx context.Context, loop func(ctx context.Context, out chan<- string)) (<-chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil, ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan string, b.cfg.QueueSize)
	done := make(chan struct{})
	b.cancel, b.done = cancel, done

	go func() {
		defer close(done)
		defer close(out)
		loop(ctx, out)
	}()
	return out, nil
}

func (b *base) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// deliver waits for path to settle and sends it. It returns false when the
// watcher is shutting down.
func (b *base) deliver(ctx context.Context, out chan<- string, path string) bool {
	if err := settle(ctx, path, b.cfg.SettleDelay); err != nil {
		if ctx.Err() != nil {
			return false
		}
		b.logger.Warn("dropping file that vanished while settling", "file", path, "error", err)
		return true
	}
	b.logger.Debug("detected", "file", path)
	select {
	case out <- path:
		return true
	case <-ctx.Done():
		return false
	}
}

// settle waits delay, then keeps polling the file size every delay/4 until two
// consecutive reads agree.
func settle(ctx context.Context, path string, delay time.Duration) error {
	if delay <= 0 {
		_, err := os.Stat(path)
		return err
	}
	if err := sleep(ctx, delay); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	prev := info.Size()
	for {
		if err := sleep(ctx, delay/4); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == prev {
			return nil
		}
		prev = info.Size()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isCandidate reports whether name in the watched directory looks like a scan.
func isCandidate(name string) bool {
	return !strings.HasPrefix(name, ".") && source.IsSupported(name)
}

// listCandidates returns the candidate regular files in dir, sorted by name.
func listCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && isCandidate(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Handler processes one detected file. A non-nil error stops Run.
type Handler func(ctx context.Context, path string) error

// Run starts w and feeds every detected file to handle, sequentially, until
// ctx is cancelled or handle fails. Cancellation is a clean shutdown and
// returns nil.
func Run(ctx context.Context, w Watcher, handle Handler) error {
	events, err := w.Start(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return w.Stop()
	})
	g.Go(func() error {
		for path := range events {
			// Queued files stay where they are once shutdown begins.
			if gctx.Err() != nil {
				break
			}
			if err := handle(gctx, path); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		return ErrWatcherClosed
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
