package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/formcrop/formcrop/internal/batch"
	"github.com/formcrop/formcrop/internal/engine"
	"github.com/formcrop/formcrop/internal/system"
)

// OriginalName is the base name a claimed scan is stored under.
const OriginalName = "original"

// maxClaimAttempts bounds retries when another process grabs the same number.
const maxClaimAttempts = 8

// NextFolderNumber returns one more than the largest all-digit subdirectory
// name of dir, or 1 when there is none.
func NextFolderNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := batch.FolderNumber(e.Name()); ok && n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// Claim moves path into a fresh numbered folder under dir and returns its new
// location. The file is renamed to original<ext> unless keepName is set.
func Claim(dir, path string, keepName bool) (string, error) {
	name := filepath.Base(path)
	if !keepName {
		name = OriginalName + strings.ToLower(filepath.Ext(path))
	}

	for range maxClaimAttempts {
		n, err := NextFolderNumber(dir)
		if err != nil {
			return "", err
		}
		target := filepath.Join(dir, strconv.Itoa(n))
		if err := os.Mkdir(target, 0o755); err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return "", err
		}

		dst := filepath.Join(target, name)
		if err := system.MoveFile(path, dst); err != nil {
			os.Remove(target)
			return "", fmt.Errorf("move %s: %w", path, err)
		}
		return dst, nil
	}
	return "", fmt.Errorf("no free folder number in %s after %d attempts", dir, maxClaimAttempts)
}

// Dispatcher is the Handler used by the watch command: claim the file,
// process it in place, then drop the original.
type Dispatcher struct {
	Dir       string
	Processor batch.Processor
	// KeepOriginal leaves the claimed scan next to its crops.
	KeepOriginal bool
	// ClaimOnly files scans into numbered folders under their own name and
	// skips processing.
	ClaimOnly bool
	// OnResult, if set, receives every processed item.
	OnResult func(engine.ItemResult)
	Logger   *slog.Logger
}

// Handle implements Handler. Item-level failures are logged, not returned,
// so a bad scan never stops the watcher. Only a full disk is fatal.
func (d *Dispatcher) Handle(ctx context.Context, path string) error {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	claimed, err := Claim(d.Dir, path, d.ClaimOnly)
	if err != nil {
		log.Error("claim failed", "file", path, "error", err)
		return nil
	}
	log.Info("claimed", "file", path, "to", claimed)
	if d.ClaimOnly {
		return nil
	}

	res := d.Processor.Process(ctx, claimed, filepath.Dir(claimed))
	if d.OnResult != nil {
		d.OnResult(res)
	}
	if errors.Is(res.Err, system.ErrLowDiskSpace) {
		return res.Err
	}

	// A failed item keeps its original so it can be retried by hand.
	if d.KeepOriginal || res.Failed() {
		return nil
	}
	if err := os.Remove(claimed); err != nil {
		log.Warn("failed to remove original", "file", claimed, "error", err)
	}
	return nil
}
