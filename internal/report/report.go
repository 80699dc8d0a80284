package report

import (
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/formcrop/formcrop/internal/database"
	"github.com/formcrop/formcrop/internal/engine"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitFatal is used for configuration and other startup errors.
	ExitFatal = 1
	// ExitItemFailures means at least one item or label did not produce output.
	ExitItemFailures = 2
)

// Label is one output of one item.
type Label struct {
	Label     string        `json:"label"`
	Status    engine.Status `json:"status"`
	Quality   int           `json:"quality,omitempty"`
	SizeBytes int           `json:"size_bytes,omitempty"`
	Path      string        `json:"path,omitempty"`
	Region    string        `json:"region,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Item is one processed source.
type Item struct {
	Source     string    `json:"source"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Labels     []Label   `json:"labels"`
}

// Summary counts outcomes across a report.
type Summary struct {
	Items      int `json:"items"`
	Failed     int `json:"failed"`
	OK         int `json:"ok"`
	OutOfRange int `json:"out_of_range"`
	NotFound   int `json:"not_found"`
	Errors     int `json:"errors"`
}

// Report is the format-independent view every writer renders.
type Report struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Items       []Item    `json:"items"`
}

// New builds a report from a run's results.
func New(results []engine.ItemResult) *Report {
	r := &Report{Title: "formcrop run", GeneratedAt: time.Now()}
	for _, res := range results {
		it := Item{
			Source:     res.Source,
			OutputDir:  res.OutputDir,
			StartedAt:  res.Started,
			DurationMS: res.Duration.Milliseconds(),
			Error:      errString(res.Err),
			Labels:     make([]Label, 0, len(res.Labels)),
		}
		for _, l := range res.Labels {
			it.Labels = append(it.Labels, Label{
				Label:     l.Label,
				Status:    l.Status,
				Quality:   l.Quality,
				SizeBytes: l.SizeBytes,
				Path:      l.Path,
				Region:    formatRegion(l.Region),
				Error:     errString(l.Err),
			})
		}
		r.Items = append(r.Items, it)
	}
	r.summarize()
	return r
}

// FromHistory builds a report from stored history records.
func FromHistory(records []database.ItemRecord) *Report {
	r := &Report{Title: "formcrop history", GeneratedAt: time.Now()}
	for _, rec := range records {
		it := Item{
			Source:     rec.Source,
			OutputDir:  rec.OutputDir,
			StartedAt:  rec.StartedAt,
			DurationMS: rec.Duration.Milliseconds(),
			Error:      rec.Error,
			Labels:     make([]Label, 0, len(rec.Labels)),
		}
		for _, l := range rec.Labels {
			it.Labels = append(it.Labels, Label(l))
		}
		r.Items = append(r.Items, it)
	}
	r.summarize()
	return r
}

func (r *Report) summarize() {
	s := Summary{Items: len(r.Items)}
	for _, it := range r.Items {
		if it.Error != "" {
			s.Failed++
		}
		for _, l := range it.Labels {
			switch l.Status {
			case engine.StatusOK:
				s.OK++
			case engine.StatusOutOfRange:
				s.OutOfRange++
			case engine.StatusNotFound:
				s.NotFound++
			case engine.StatusError:
				s.Errors++
			}
		}
	}
	r.Summary = s
}

// ExitCode maps the report to a process exit code. Out-of-range outputs are
// written files and only count as failures when strict is set.
func (r *Report) ExitCode(strict bool) int {
	s := r.Summary
	if s.Failed > 0 || s.NotFound > 0 || s.Errors > 0 {
		return ExitItemFailures
	}
	if strict && s.OutOfRange > 0 {
		return ExitItemFailures
	}
	return ExitOK
}

// Writer renders a report.
type Writer interface {
	Write(r *Report) error
}

// Formats lists the names accepted by NewWriter.
var Formats = []string{"text", "json", "markdown"}

// NewWriter returns the writer for format.
func NewWriter(format string, out io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return NewSimpleWriter(out), nil
	case "json":
		return NewJSONWriter(out, WithPrettyPrint()), nil
	case "markdown", "md":
		return NewMarkdownWriter(out), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

func formatRegion(r image.Rectangle) string {
	if r.Empty() {
		return ""
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
