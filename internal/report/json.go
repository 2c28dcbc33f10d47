package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/autokuro/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into every document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the autokuro version recorded in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run report with output metadata.
type JSONReport struct {
	// Version is the autokuro version that produced the report.
	Version string `json:"version,omitempty"`

	// Report is the run report.
	Report *model.RunReport `json:"report"`

	// Summary holds the per-status and per-severity counts.
	Summary JSONSummary `json:"summary"`
}

// JSONSummary is the count block of a JSONReport.
type JSONSummary struct {
	Stages     map[model.StageStatus]int `json:"stages"`
	Severities map[string]int            `json:"severities"`
	Findings   int                       `json:"findings"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.RunReport, version string) *JSONReport {
	summary := JSONSummary{
		Stages:     make(map[model.StageStatus]int),
		Severities: make(map[string]int),
		Findings:   len(report.Findings),
	}
	for _, s := range report.Stages {
		summary.Stages[s.Status]++
	}
	for _, f := range report.Findings {
		summary.Severities[f.Severity.String()]++
	}
	return &JSONReport{Version: version, Report: report, Summary: summary}
}

// Write outputs one report wrapped with metadata.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// WriteBatch outputs the reports of a batch as one JSON array.
func (w *JSONWriter) WriteBatch(reports []*model.RunReport) (int, error) {
	wrapped := make([]*JSONReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			wrapped = append(wrapped, NewJSONReport(r, w.version))
		}
	}
	return w.writeJSON(wrapped)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
