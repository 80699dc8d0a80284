package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// SimpleWriter prints a plain-text table for terminals.
type SimpleWriter struct {
	output io.Writer
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{output: output}
}

func (w *SimpleWriter) Write(r *Report) error {
	s := r.Summary
	fmt.Fprintf(w.output, "%s\n%s\n", strings.ToUpper(r.Title), strings.Repeat("=", len(r.Title)))
	fmt.Fprintf(w.output, "items: %d  failed: %d  ok: %d  out_of_range: %d  not_found: %d  errors: %d\n\n",
		s.Items, s.Failed, s.OK, s.OutOfRange, s.NotFound, s.Errors)

	tw := tabwriter.NewWriter(w.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tLABEL\tSTATUS\tQUALITY\tSIZE\tDETAIL")
	for _, it := range r.Items {
		if it.Error != "" {
			fmt.Fprintf(tw, "%s\t-\tfailed\t-\t-\t%s\n", it.Source, it.Error)
			continue
		}
		for _, l := range it.Labels {
			quality, size := "-", "-"
			if l.Quality > 0 {
				quality = fmt.Sprint(l.Quality)
				size = humanize.IBytes(uint64(l.SizeBytes))
			}
			detail := l.Path
			if l.Error != "" {
				detail = l.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", it.Source, l.Label, l.Status, quality, size, detail)
		}
	}
	return tw.Flush()
}
