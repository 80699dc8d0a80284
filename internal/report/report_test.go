package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/formcrop/formcrop/internal/database"
	"github.com/formcrop/formcrop/internal/engine"
)

func sampleResults() []engine.ItemResult {
	return []engine.ItemResult{
		{
			Source:    "INCOMING/1/original.jpg",
			OutputDir: "INCOMING/1",
			Started:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			Duration:  2 * time.Second,
			Labels: []engine.LabelResult{
				{Label: "FORM", Status: engine.StatusOK, Quality: 70, SizeBytes: 150 << 10, Path: "INCOMING/1/FORM.jpg", Region: image.Rect(0, 0, 2480, 3508)},
				{Label: "PH", Status: engine.StatusOutOfRange, Quality: 15, SizeBytes: 4 << 10, Path: "INCOMING/1/PH.jpg"},
				{Label: "PS", Status: engine.StatusNotFound, Err: errors.New("no qualifying region found")},
			},
		},
		{
			Source:    "INCOMING/2/original.png",
			OutputDir: "INCOMING/2",
			Err:       errors.New("decode INCOMING/2/original.png: unexpected EOF"),
		},
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	r := New(sampleResults())
	want := Summary{Items: 2, Failed: 1, OK: 1, OutOfRange: 1, NotFound: 1}
	if r.Summary != want {
		t.Errorf("summary = %+v, want %+v", r.Summary, want)
	}
	if r.Items[0].Labels[0].Region != "0,0,2480,3508" || r.Items[0].Labels[1].Region != "" {
		t.Errorf("regions = %q, %q", r.Items[0].Labels[0].Region, r.Items[0].Labels[1].Region)
	}
	if r.Items[0].DurationMS != 2000 {
		t.Errorf("duration = %d", r.Items[0].DurationMS)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	ok := engine.ItemResult{Labels: []engine.LabelResult{{Label: "FORM", Status: engine.StatusOK}}}
	outOfRange := engine.ItemResult{Labels: []engine.LabelResult{{Label: "PH", Status: engine.StatusOutOfRange}}}
	notFound := engine.ItemResult{Labels: []engine.LabelResult{{Label: "PS", Status: engine.StatusNotFound}}}
	labelErr := engine.ItemResult{Labels: []engine.LabelResult{{Label: "SS", Status: engine.StatusError}}}
	failed := engine.ItemResult{Err: errors.New("decode")}

	tests := []struct {
		name    string
		results []engine.ItemResult
		strict  bool
		want    int
	}{
		{"empty run", nil, true, ExitOK},
		{"all ok", []engine.ItemResult{ok}, true, ExitOK},
		{"out of range tolerated", []engine.ItemResult{ok, outOfRange}, false, ExitOK},
		{"out of range strict", []engine.ItemResult{ok, outOfRange}, true, ExitItemFailures},
		{"not found", []engine.ItemResult{notFound}, false, ExitItemFailures},
		{"label error", []engine.ItemResult{labelErr}, false, ExitItemFailures},
		{"decode failure", []engine.ItemResult{ok, failed}, false, ExitItemFailures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.results).ExitCode(tt.strict); got != tt.want {
				t.Errorf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewSimpleWriter(&buf).Write(New(sampleResults())); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"FORMCROP RUN",
		"items: 2  failed: 1",
		"INCOMING/1/FORM.jpg",
		"150 KiB",
		"not_found",
		"unexpected EOF",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewJSONWriter(&buf, WithPrettyPrint()).Write(New(sampleResults())); err != nil {
		t.Fatal(err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Summary.Items != 2 || len(decoded.Items) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if got := decoded.Items[0].Labels[2]; got.Status != engine.StatusNotFound || got.Path != "" {
		t.Errorf("PS = %+v", got)
	}
	if !strings.Contains(buf.String(), `"size_bytes": 153600`) {
		t.Errorf("missing FORM size:\n%s", buf.String())
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewMarkdownWriter(&buf).Write(New(sampleResults())); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# formcrop run", "## Labels", "## Items", "`INCOMING/1/original.jpg`", "out_of_range"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdownWriterEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewMarkdownWriter(&buf).Write(New(nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Nothing was processed.") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestFromHistory(t *testing.T) {
	t.Parallel()

	r := FromHistory([]database.ItemRecord{{
		Source:    "a.jpg",
		OutputDir: ".",
		Duration:  time.Second,
		Labels: []database.LabelRecord{
			{Label: "FORM", Status: engine.StatusOK, Quality: 90, SizeBytes: 1000},
			{Label: "SS", Status: engine.StatusError, Error: "write failed"},
		},
	}})
	if r.Title != "formcrop history" || r.Summary.OK != 1 || r.Summary.Errors != 1 {
		t.Errorf("report = %+v", r)
	}
	if r.ExitCode(false) != ExitItemFailures {
		t.Error("label error should fail")
	}
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	for _, f := range append(Formats, "", "md", "JSON") {
		if _, err := NewWriter(f, &bytes.Buffer{}); err != nil {
			t.Errorf("NewWriter(%q): %v", f, err)
		}
	}
	if _, err := NewWriter("xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for xml")
	}
}
