package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs reports in Markdown, suitable for attaching to a
// ticket or committing next to the scans.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

func (w *MarkdownWriter) Write(r *Report) error {
	md := markdown.NewMarkdown(w.output)

	md.H1(r.Title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Items", strconv.Itoa(r.Summary.Items)},
			{"Failed items", strconv.Itoa(r.Summary.Failed)},
		},
	})
	md.PlainText("")

	w.writeSummary(md, r.Summary)
	w.writeItems(md, r.Items)

	return md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Labels")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"ok", strconv.Itoa(s.OK)},
			{"out_of_range", strconv.Itoa(s.OutOfRange)},
			{"not_found", strconv.Itoa(s.NotFound)},
			{"error", strconv.Itoa(s.Errors)},
		},
	})
	md.PlainText("")

	switch {
	case s.Failed > 0 || s.Errors > 0:
		md.Cautionf("%d item(s) failed and %d label(s) errored.", s.Failed, s.Errors)
	case s.NotFound > 0:
		md.Warningf("%d label(s) had no detectable region.", s.NotFound)
	case s.OutOfRange > 0:
		md.Note(fmt.Sprintf("%d output(s) were saved outside their size limit.", s.OutOfRange))
	default:
		md.Tip("All outputs are within their size limits.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeItems(md *markdown.Markdown, items []Item) {
	md.H2("Items")
	md.PlainText("")
	if len(items) == 0 {
		md.PlainText("Nothing was processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(items)*4)
	for _, it := range items {
		if it.Error != "" {
			rows = append(rows, []string{"`" + it.Source + "`", "", "failed", "", "", it.Error})
			continue
		}
		for _, l := range it.Labels {
			quality, size := "", ""
			if l.Quality > 0 {
				quality = strconv.Itoa(l.Quality)
				size = humanize.IBytes(uint64(l.SizeBytes))
			}
			detail := l.Region
			if l.Error != "" {
				detail = l.Error
			}
			rows = append(rows, []string{"`" + it.Source + "`", l.Label, string(l.Status), quality, size, detail})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Label", "Status", "Quality", "Size", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}
