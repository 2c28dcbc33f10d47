package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/autokuro/internal/model"
)

// Summaries written into each run directory.
const (
	SummaryFile     = "summary.md"
	SummaryJSONFile = "summary.json"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummaryFile writes the Markdown and JSON summaries of report into its
// run directory and returns the Markdown path.
func WriteSummaryFile(report *model.RunReport, version string) (string, error) {
	mdPath := filepath.Join(report.Dir, SummaryFile)
	md, err := createSummary(mdPath)
	if err != nil {
		return "", err
	}
	js, err := createSummary(filepath.Join(report.Dir, SummaryJSONFile))
	if err != nil {
		_ = md.Close()
		return "", err
	}

	w := NewMultiWriter(
		NewMarkdownWriter(md),
		NewJSONWriter(js, WithPrettyPrint(), WithVersion(version)),
	)
	_, werr := w.Write(report)
	if err := errors.Join(werr, md.Close(), js.Close()); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	return mdPath, nil
}

func createSummary(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is inside the run directory
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeStages(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("AutoKuro Report: " + report.Target)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Mode", ModeTitle(report.Mode)},
			{"Run ID", "`" + report.ID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Second).String()},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.RunReport) string {
	switch report.Status {
	case model.RunCompleted:
		return "✅ Complete"
	case model.RunNoViableTarget:
		return "⚠️ Stopped - no live hosts"
	case model.RunBlocked:
		return "⛔ Blocked - " + report.Error
	default:
		if report.Error != "" {
			return "❌ " + string(report.Status) + " - " + report.Error
		}
		return "❌ " + string(report.Status)
	}
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Findings"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(report.CountBySeverity(model.SeverityCritical))},
			{"🟠 High", strconv.Itoa(report.CountBySeverity(model.SeverityHigh))},
			{"🟡 Medium", strconv.Itoa(report.CountBySeverity(model.SeverityMedium))},
			{"🔵 Low", strconv.Itoa(report.CountBySeverity(model.SeverityLow))},
			{"⚪ Info", strconv.Itoa(report.CountBySeverity(model.SeverityInfo))},
			{"**Total**", "**" + strconv.Itoa(len(report.Findings)) + "**"},
		},
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of result counts per finding label.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Results per Finding"),
		piechart.WithShowData(true),
	)
	for _, f := range report.Findings {
		if f.Count > 0 {
			chart.LabelAndIntValue(f.Label, uint64(f.Count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	critical := report.CountBySeverity(model.SeverityCritical)
	high := report.CountBySeverity(model.SeverityHigh)
	medium := report.CountBySeverity(model.SeverityMedium)

	switch {
	case report.Status == model.RunBlocked:
		md.Cautionf("The run was blocked by the target: %s. Later stages did not run.", report.Error)
	case critical > 0:
		md.Cautionf("%d critical finding(s) need immediate review: leaked secrets were detected.", critical)
	case high > 0:
		md.Warningf("%d high severity finding(s) should be verified.", high)
	case medium > 0:
		md.Importantf("%d medium severity finding(s) found by template scans.", medium)
	case report.HasFindings():
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No findings stage produced results.")
	}
	md.PlainText("")
}

// writeStages writes the per-stage outcome table.
func (w *MarkdownWriter) writeStages(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Stages")
	md.PlainText("")

	if len(report.Stages) == 0 {
		md.PlainText("No stages ran.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Stages))
	for i, s := range report.Stages {
		note := s.Diagnostic
		if note == "" {
			note = "-"
		}
		rows[i] = []string{
			s.Stage,
			stageStatusText(s.Status),
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.Throttles),
			humanize.Comma(int64(s.Lines)),
			"`" + artifactName(s.Artifact) + "`",
			truncateString(note, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Stage", "Status", "Attempts", "Throttles", "Lines", "Artifact", "Note"},
		Rows:   rows,
	})
	md.PlainText("")
}

func stageStatusText(s model.StageStatus) string {
	switch s {
	case model.StageSuccess:
		return "✅ success"
	case model.StageSkipped:
		return "⏩ skipped"
	case model.StageTimedOut:
		return "⏱️ timed out"
	case model.StageBlocked:
		return "⛔ blocked"
	default:
		return "❌ " + string(s)
	}
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "🔴 Critical",
		model.SeverityHigh:     "🟠 High",
		model.SeverityMedium:   "🟡 Medium",
		model.SeverityLow:      "🔵 Low",
		model.SeverityInfo:     "⚪ Info",
	}

	for _, sev := range severityOrder {
		findings := report.FindingsBySeverity(sev)
		if len(findings) == 0 {
			continue
		}

		md.H3(headers[sev])
		md.PlainText("")

		rows := make([][]string, len(findings))
		for i, f := range findings {
			rows[i] = []string{f.Label, f.Stage, strconv.Itoa(f.Count), "`" + f.Artifact + "`"}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Finding", "Stage", "Results", "Artifact"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by autokuro at %s*", time.Now().Format("2006-01-02 15:04:05 MST"))
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
