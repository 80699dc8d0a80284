// Package engine runs one scanned form through the whole pipeline: decode,
// normalize, crop every zone, fit each crop into its size envelope and write
// the results next to each other in the item's output directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/formcrop/formcrop/internal/analyzer"
	"github.com/formcrop/formcrop/internal/canvas"
	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/encoder"
	"github.com/formcrop/formcrop/internal/extract"
	"github.com/formcrop/formcrop/internal/source"
	"github.com/formcrop/formcrop/internal/system"
)

// Status is the outcome of one label of one item.
type Status string

const (
	StatusOK         Status = "ok"
	StatusOutOfRange Status = "out_of_range"
	StatusNotFound   Status = "not_found"
	StatusError      Status = "error"
)

// LabelResult describes a single output file.
type LabelResult struct {
	Label     string
	Status    Status
	Quality   int
	SizeBytes int
	Path      string
	// Region is the crop rectangle in canvas coordinates. Empty when nothing
	// was cropped.
	Region image.Rectangle
	Err    error
}

// ItemResult is the outcome of processing one source file.
type ItemResult struct {
	Source    string
	OutputDir string
	Labels    []LabelResult
	// Err is set when the item failed as a whole (decode, disk space).
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Failed reports whether the item could not be processed at all.
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// Count returns how many labels ended with status s.
func (r ItemResult) Count(s Status) int {
	n := 0
	for _, l := range r.Labels {
		if l.Status == s {
			n++
		}
	}
	return n
}

// Recorder persists item results, for example into the history ledger.
type Recorder interface {
	Record(ctx context.Context, res ItemResult) error
}

// Processor turns source files into labelled JPEG crops.
type Processor struct {
	cfg       config.Config
	detector  analyzer.Detector
	codec     encoder.Codec
	extractor *extract.Extractor
	encoder   *encoder.Encoder
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRecorder makes the processor record every item result.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// WithCodec overrides the codec named in the configuration.
func WithCodec(c encoder.Codec) Option {
	return func(p *Processor) {
		p.codec = c
	}
}

// WithDetector overrides the detector backend named in the configuration.
func WithDetector(d analyzer.Detector) Option {
	return func(p *Processor) {
		p.detector = d
	}
}

// New validates cfg and wires the pipeline stages.
func New(cfg config.Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.detector == nil {
		d, err := analyzer.NewDetector(cfg.Detection.Backend, cfg.Detection.Threshold)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidDetection, err)
		}
		p.detector = d
	}
	if p.codec == nil {
		c, err := encoder.NewCodec(cfg.Codec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidCodec, err)
		}
		p.codec = c
	}

	p.extractor = extract.New(p.detector, cfg.Detection)
	p.encoder = encoder.New(p.codec, cfg.Quality, encoder.WithLogger(p.logger))
	return p, nil
}

// Config returns the configuration the processor was built with.
func (p *Processor) Config() config.Config {
	return p.cfg
}

// Process runs srcPath through the pipeline and writes one JPEG per label into
// outDir. It never returns an error: failures are reported per label, or in
// ItemResult.Err when the item could not be processed at all.
func (p *Processor) Process(ctx context.Context, srcPath, outDir string) ItemResult {
	res := ItemResult{
		Source:    srcPath,
		OutputDir: outDir,
		Started:   time.Now(),
	}
	log := p.logger.With("item", srcPath)

	res.Err = p.process(ctx, log, srcPath, outDir, &res)
	if res.Err != nil {
		p.clearUnwritten(log, outDir, res.Labels)
	}
	res.Duration = time.Since(res.Started)

	switch {
	case res.Err != nil:
		log.Error("item failed", "error", res.Err)
	default:
		log.Info("item done",
			"ok", res.Count(StatusOK),
			"out_of_range", res.Count(StatusOutOfRange),
			"not_found", res.Count(StatusNotFound),
			"errors", res.Count(StatusError),
			"elapsed", res.Duration.Round(time.Millisecond))
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, res); err != nil {
			log.Warn("failed to record history", "error", err)
		}
	}
	return res
}

func (p *Processor) process(ctx context.Context, log *slog.Logger, srcPath, outDir string, res *ItemResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := source.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if n := src.PageCount(); n > 1 {
		log.Warn("multi-page source, only the first page is used", "pages", n)
	}

	img, err := src.RenderPage(0, p.cfg.PDFDPI)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := system.EnsureFreeSpace(outDir, p.cfg.MinFreeMB); err != nil {
		return err
	}

	page := system.GetCanvas(p.cfg.Canvas)
	defer system.PutCanvas(page)
	canvas.NormalizeInto(page, img)
	log.Debug("normalized", "from", img.Bounds().Size(), "to", page.Bounds().Size())

	form := p.emit(log, outDir, p.cfg.FormLabel, page, page.Bounds())
	res.Labels = append(res.Labels, form)

	for _, zone := range p.cfg.Zones {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Labels = append(res.Labels, p.processZone(log, outDir, page, zone))
	}
	return nil
}

func (p *Processor) processZone(log *slog.Logger, outDir string, page *image.RGBA, zone config.Zone) LabelResult {
	crop, err := p.extractor.Extract(page, zone)
	if err != nil {
		lr := LabelResult{Label: zone.Label, Status: StatusError, Err: err}
		if errors.Is(err, extract.ErrDetectionMiss) {
			lr.Status = StatusNotFound
			log.Warn("no region detected, label skipped", "label", zone.Label, "zone", zone.Rect.String())
		} else {
			log.Error("extract failed", "label", zone.Label, "error", err)
		}
		clearOutput(log, outDir, zone.Label)
		return lr
	}
	return p.emit(log, outDir, zone.Label, crop.Image, crop.Rect)
}

// emit encodes img under label's size limit and writes it into outDir.
func (p *Processor) emit(log *slog.Logger, outDir, label string, img image.Image, region image.Rectangle) LabelResult {
	lr := LabelResult{Label: label, Region: region}

	art, err := p.encoder.Encode(img, label, p.cfg.Limits[label])
	if err != nil {
		lr.Status, lr.Err = StatusError, err
		log.Error("encode failed", "label", label, "error", err)
		clearOutput(log, outDir, label)
		return lr
	}

	path := filepath.Join(outDir, config.OutputName(label))
	if err := system.WriteFileAtomic(path, art.Data, 0o644); err != nil {
		lr.Status, lr.Err = StatusError, err
		log.Error("write failed", "label", label, "error", err)
		clearOutput(log, outDir, label)
		return lr
	}

	lr.Path = path
	lr.Quality = art.Quality
	lr.SizeBytes = art.Size()

	attrs := []any{
		"label", label,
		"quality", art.Quality,
		"size", humanize.IBytes(uint64(art.Size())),
		"limit", art.Limit.String(),
	}
	if art.Status == encoder.StatusInRange {
		lr.Status = StatusOK
		log.Info("saved", attrs...)
	} else {
		lr.Status = StatusOutOfRange
		log.Warn("saved outside size limit", attrs...)
	}
	return lr
}

// clearUnwritten removes the output of every label this run did not write.
// It runs when the item failed part way, so files from an earlier run of the
// same folder cannot pass for current results.
func (p *Processor) clearUnwritten(log *slog.Logger, outDir string, done []LabelResult) {
	written := make(map[string]bool, len(done))
	for _, l := range done {
		if l.Path != "" {
			written[l.Label] = true
		}
	}
	for _, label := range p.cfg.Labels() {
		if !written[label] {
			clearOutput(log, outDir, label)
		}
	}
}

// clearOutput deletes label's file in outDir, if any.
func clearOutput(log *slog.Logger, outDir, label string) {
	path := filepath.Join(outDir, config.OutputName(label))
	err := os.Remove(path)
	switch {
	case err == nil:
		log.Debug("removed stale output", "label", label, "file", path)
	case !errors.Is(err, os.ErrNotExist):
		log.Warn("failed to remove stale output", "label", label, "file", path, "error", err)
	}
}
