package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/autokuro/internal/model"
)

// SimpleWriter outputs human-readable text summaries for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds stage diagnostics to the stage table.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStages(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      AUTOKURO RUN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:    %s\n", report.Target)
	fmt.Fprintf(sb, "Mode:      %s\n", ModeTitle(report.Mode))
	if report.ID != "" {
		fmt.Fprintf(sb, "Run ID:    %s\n", report.ID)
	}
	fmt.Fprintf(sb, "Directory: %s\n", report.Dir)
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration().Round(time.Second))
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

// statusText describes how the run ended.
func statusText(report *model.RunReport) string {
	switch report.Status {
	case model.RunCompleted:
		return "Complete"
	case model.RunNoViableTarget:
		return "STOPPED - no live hosts"
	case model.RunBlocked:
		return "BLOCKED - " + report.Error
	case model.RunAborted:
		if report.Error != "" {
			return "ABORTED - " + report.Error
		}
		return "ABORTED"
	default:
		return string(report.Status)
	}
}

func (w *SimpleWriter) writeStages(sb *strings.Builder, report *model.RunReport) {
	if len(report.Stages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Stages) == 0 {
		sb.WriteString("  No stages ran\n\n")
		return
	}

	fmt.Fprintf(sb, "  %-14s %-10s %-9s %8s %9s %9s\n", "STAGE", "STATUS", "ATTEMPTS", "THROTTLE", "LINES", "ELAPSED")
	for _, s := range report.Stages {
		fmt.Fprintf(sb, "  %-14s %-10s %-9d %8d %9s %9s\n",
			s.Stage,
			s.Status,
			s.Attempts,
			s.Throttles,
			humanize.Comma(int64(s.Lines)),
			s.Elapsed.Round(time.Second),
		)
		if w.verbose && s.Diagnostic != "" {
			fmt.Fprintf(sb, "    %s\n", s.Diagnostic)
		}
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %d succeeded, %d skipped, %d failed, %d timed out\n\n",
		report.CountByStatus(model.StageSuccess),
		report.CountByStatus(model.StageSkipped),
		report.CountByStatus(model.StageFailed),
		report.CountByStatus(model.StageTimedOut),
	)
}

func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.RunReport) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FINDINGS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !report.HasFindings() {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, severity := range severityOrder {
		for _, f := range report.FindingsBySeverity(severity) {
			fmt.Fprintf(sb, "  [%s] %s\n", w.getSeverityIndicator(severity), f.Message())
		}
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Artifacts: %s\n", report.Dir)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
