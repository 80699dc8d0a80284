package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs reports for tool integration.
type JSONWriter struct {
	output io.Writer
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents output by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{output: output}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *JSONWriter) Write(r *Report) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", w.indent)
	return enc.Encode(r)
}
