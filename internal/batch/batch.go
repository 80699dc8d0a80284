// Package batch finds already-filed scans on disk and feeds them through the
// processor one at a time.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/engine"
	"github.com/formcrop/formcrop/internal/source"
)

// Mode selects how a directory is scanned for items.
type Mode string

const (
	// ModeFolders takes the first image of every numbered subdirectory.
	ModeFolders Mode = "folders"
	// ModeTree takes every image anywhere below the root.
	ModeTree Mode = "tree"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeFolders, ModeTree:
		return m, nil
	default:
		return "", fmt.Errorf("unknown batch mode %q (want %q or %q)", s, ModeFolders, ModeTree)
	}
}

// Item is one source and the directory its outputs are written to.
type Item struct {
	Source    string
	OutputDir string
}

// Processor is the part of engine.Processor a batch needs.
type Processor interface {
	Process(ctx context.Context, src, outDir string) engine.ItemResult
}

// Discover lists the items under root. Files named after an output label
// (FORM.jpg, PH.jpg, ...) are never treated as sources, so re-running a batch
// does not crop its own results.
func Discover(root string, mode Mode, labels []string) ([]Item, error) {
	isSource := SourceFilter(labels)
	switch mode {
	case ModeFolders:
		return discoverFolders(root, isSource)
	case ModeTree:
		return discoverTree(root, isSource)
	default:
		return nil, fmt.Errorf("unknown batch mode %q", mode)
	}
}

// SourceFilter returns a predicate accepting file names that can be opened as
// a scan and are not one of the given labels' outputs.
func SourceFilter(labels []string) func(name string) bool {
	outputs := make(map[string]bool, len(labels))
	for _, l := range labels {
		outputs[strings.ToLower(config.OutputName(l))] = true
	}
	return func(name string) bool {
		name = filepath.Base(name)
		return !strings.HasPrefix(name, ".") &&
			source.IsSupported(name) &&
			!outputs[strings.ToLower(name)]
	}
}

func discoverFolders(root string, isSource func(string) bool) ([]Item, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		name string
	}
	var dirs []numbered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := FolderNumber(e.Name()); ok {
			dirs = append(dirs, numbered{n, e.Name()})
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].n < dirs[j].n })

	var items []Item
	for _, d := range dirs {
		dir := filepath.Join(root, d.name)
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		// ReadDir is sorted by name.
		for _, f := range files {
			if f.Type().IsRegular() && isSource(f.Name()) {
				items = append(items, Item{Source: filepath.Join(dir, f.Name()), OutputDir: dir})
				break
			}
		}
	}
	return items, nil
}

func discoverTree(root string, isSource func(string) bool) ([]Item, error) {
	var items []Item
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && isSource(d.Name()) {
			items = append(items, Item{Source: path, OutputDir: filepath.Dir(path)})
		}
		return nil
	})
	return items, err
}

// FolderNumber parses a directory name made only of ASCII digits.
func FolderNumber(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Run processes items sequentially. It stops early when ctx is cancelled and
// returns the results gathered so far. Items sharing an output directory
// overwrite each other's files; Run warns when that happens.
func Run(ctx context.Context, p Processor, items []Item, logger *slog.Logger) []engine.ItemResult {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]engine.ItemResult, 0, len(items))
	owners := make(map[string]string, len(items))
	for i, it := range items {
		if ctx.Err() != nil {
			logger.Warn("batch interrupted", "processed", i, "total", len(items))
			break
		}
		dir := filepath.Clean(it.OutputDir)
		if prev, ok := owners[dir]; ok {
			logger.Warn("output directory already used in this run, its files will be replaced",
				"dir", dir, "item", it.Source, "previous", prev)
		}
		owners[dir] = it.Source
		logger.Debug("processing", "index", i+1, "total", len(items), "item", it.Source)
		results = append(results, p.Process(ctx, it.Source, it.OutputDir))
	}
	return results
}
