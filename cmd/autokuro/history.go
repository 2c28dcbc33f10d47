package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/database"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/report"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// Constants for risk direction and summary messages.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
	noFindingsMessage      = "No findings"
	historyTimeLayout      = "2006-01-02 15:04:05"
)

// NewHistoryCmd creates the history command.
// This command reads the run history database written by 'autokuro start'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Show recorded runs and compare them",
		Long: `History shows the runs recorded by 'autokuro start'.

Without arguments it lists every scanned target. With a domain it lists the
runs of that target, newest first. --run shows the stages of one run with
the fingerprint of each artifact, and --compare shows what changed between
the latest two runs of a target:
- Line count changes per stage
- Artifacts whose content changed
- New and resolved findings

Examples:
  # List scanned targets
  autokuro history

  # List runs of a target
  autokuro history example.com

  # Show the stages of one run
  autokuro history --run 3f1c...

  # Compare the latest two runs
  autokuro history example.com --compare

  # Compare the latest run with a specific earlier run
  autokuro history example.com --compare --with 3f1c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("run", "",
		"Show the stages of the run with this ID")
	cmd.Flags().Bool("compare", false,
		"Compare the latest run of the target with the previous one")
	cmd.Flags().String("with", "",
		"Run ID to compare the latest run with (implies --compare)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison in Markdown format")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	target   string
	runID    string
	compare  bool
	withID   string
	json     bool
	markdown bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var (
		opts historyOptions
		err  error
	)
	if len(args) > 0 {
		opts.target = config.NormalizeTarget(args[0])
		if err := config.ValidateTarget(opts.target); err != nil {
			return config.NewConfigurationError("history", err)
		}
	}
	if opts.runID, err = cmd.Flags().GetString("run"); err != nil {
		return err
	}
	if opts.compare, err = cmd.Flags().GetBool("compare"); err != nil {
		return err
	}
	if opts.withID, err = cmd.Flags().GetString("with"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	if opts.withID != "" {
		opts.compare = true
	}
	if opts.compare && opts.target == "" {
		return errors.New("a domain is required for --compare")
	}

	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(dbDir, dbOpts)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer db.Close()

	return showHistory(cmd.Context(), db, cmd.OutOrStdout(), opts)
}

// showHistory dispatches to the selected view.
func showHistory(ctx context.Context, db *database.RunDB, w io.Writer, opts historyOptions) error {
	switch {
	case opts.runID != "":
		return showRun(ctx, db, w, opts.runID, opts.json)
	case opts.compare:
		return runComparison(ctx, db, w, opts)
	case opts.target != "":
		return listRuns(ctx, db, w, opts.target, opts.json)
	default:
		return listTargets(ctx, db, w, opts.json)
	}
}

// listTargets lists every target that has recorded runs.
func listTargets(ctx context.Context, db *database.RunDB, w io.Writer, asJSON bool) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	if asJSON {
		return writeJSON(w, targets)
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "No runs found in the history database.")
		fmt.Fprintln(w, "\nUse 'autokuro start -d <domain>' to scan a target.")
		return nil
	}

	fmt.Fprintf(w, "Scanned targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(w, "  • %s\n", t)
	}
	fmt.Fprintln(w, "\nUse 'autokuro history <domain>' to see the runs of a target.")
	return nil
}

// RunView is the JSON form of a recorded run.
type RunView struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	Mode       string          `json:"mode"`
	Dir        string          `json:"dir"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
	Status     model.RunStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	Findings   []model.Finding `json:"findings,omitempty"`
	Stages     []StageView     `json:"stages,omitempty"`
}

// StageView is the JSON form of a recorded stage.
type StageView struct {
	model.StageRecord
	Fingerprint string `json:"fingerprint,omitempty"`
}

func newRunView(run database.RunSummary, stages []database.StageEntry) RunView {
	v := RunView{
		ID:         run.ID,
		Target:     run.Target,
		Mode:       run.Mode,
		Dir:        run.Dir,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     run.Status,
		Error:      run.Error,
		Findings:   run.Findings,
	}
	for _, s := range stages {
		v.Stages = append(v.Stages, StageView{StageRecord: s.StageRecord, Fingerprint: s.Fingerprint})
	}
	return v
}

// listRuns lists the runs of one target, newest first.
func listRuns(ctx context.Context, db *database.RunDB, w io.Writer, target string, asJSON bool) error {
	runs, err := db.ListRuns(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if asJSON {
		views := make([]RunView, 0, len(runs))
		for _, r := range runs {
			views = append(views, newRunView(r, nil))
		}
		return writeJSON(w, views)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No run history found for %s\n", target)
		fmt.Fprintln(w, "\nUse 'autokuro start' to scan this target.")
		return nil
	}

	fmt.Fprintf(w, "Run history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(w, "  %-36s  %-19s  %-7s  %-16s  %-9s  %s\n", "ID", "Started", "Mode", "Status", "Duration", "Findings")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 110))
	for _, r := range runs {
		duration := "-"
		if d := r.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		fmt.Fprintf(w, "  %-36s  %-19s  %-7s  %-16s  %-9s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(historyTimeLayout),
			r.Mode,
			r.Status,
			duration,
			formatRiskSummary(severityCounts(r.Findings)),
		)
	}

	fmt.Fprintln(w, "\nUse 'autokuro history --run <id>' to see the stages of a run.")
	fmt.Fprintln(w, "Use 'autokuro history <domain> --compare' to compare the latest two runs.")
	return nil
}

// showRun prints one run with its stages.
func showRun(ctx context.Context, db *database.RunDB, w io.Writer, id string, asJSON bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	stages, err := db.GetStages(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, newRunView(*run, stages))
	}

	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Target:   %s\n", run.Target)
	fmt.Fprintf(w, "Mode:     %s\n", report.ModeTitle(run.Mode))
	fmt.Fprintf(w, "Started:  %s (%s)\n", run.StartedAt.Local().Format(historyTimeLayout), humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.Error)
	}
	fmt.Fprintf(w, "Dir:      %s\n", run.Dir)

	fmt.Fprintln(w, "\nStages:")
	fmt.Fprintf(w, "  %-12s  %-10s  %-8s  %-10s  %-8s  %s\n", "Stage", "Status", "Attempts", "Elapsed", "Lines", "Fingerprint")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 76))
	for _, s := range stages {
		fmt.Fprintf(w, "  %-12s  %-10s  %-8d  %-10s  %-8s  %s\n",
			s.Stage,
			s.Status,
			s.Attempts,
			s.Elapsed.Round(time.Millisecond),
			humanize.Comma(int64(s.Lines)),
			shortFingerprint(s.Fingerprint),
		)
	}

	if len(run.Findings) > 0 {
		fmt.Fprintf(w, "\nFindings (%d):\n", len(run.Findings))
		for _, f := range run.Findings {
			fmt.Fprintf(w, "  %s\n", f.Message())
		}
	}
	return nil
}

// shortFingerprint abbreviates a hex digest for tables.
func shortFingerprint(fp string) string {
	if fp == "" {
		return "-"
	}
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// severityCounts counts findings per severity.
func severityCounts(findings []model.Finding) map[model.Severity]int {
	counts := make(map[model.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// formatRiskSummary formats the per-severity counts into a compact string.
func formatRiskSummary(summary map[model.Severity]int) string {
	var parts []string
	for _, s := range []struct {
		sev    model.Severity
		prefix string
	}{
		{model.SeverityCritical, "C"},
		{model.SeverityHigh, "H"},
		{model.SeverityMedium, "M"},
		{model.SeverityLow, "L"},
		{model.SeverityInfo, "I"},
	} {
		if v := summary[s.sev]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", s.prefix, v))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest run of a target with an earlier one.
func runComparison(ctx context.Context, db *database.RunDB, w io.Writer, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", opts.target)
	}

	current := runs[0]
	var previous database.RunSummary
	switch {
	case opts.withID != "":
		prev, err := db.GetRun(ctx, opts.withID)
		if err != nil {
			return err
		}
		if prev.Target != opts.target {
			return fmt.Errorf("run %s belongs to %s, not %s", opts.withID, prev.Target, opts.target)
		}
		if prev.ID == current.ID {
			return fmt.Errorf("run %s is the latest run; choose an earlier one", opts.withID)
		}
		previous = *prev
	case len(runs) < 2:
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	default:
		previous = runs[1]
	}

	prevStages, err := db.GetStages(ctx, previous.ID)
	if err != nil {
		return err
	}
	curStages, err := db.GetStages(ctx, current.ID)
	if err != nil {
		return err
	}

	result := compareRuns(previous, prevStages, current, curStages)
	switch {
	case opts.json:
		return writeJSON(w, result)
	case opts.markdown:
		return outputComparisonMarkdown(w, result)
	default:
		outputComparisonText(w, result)
		return nil
	}
}

// ComparisonResult holds the result of comparing two runs of a target.
type ComparisonResult struct {
	// Target is the scanned domain.
	Target string `json:"target"`

	// PreviousRun contains metadata about the earlier run.
	PreviousRun RunMetadata `json:"previous_run"`

	// CurrentRun contains metadata about the later run.
	CurrentRun RunMetadata `json:"current_run"`

	// Stages lists per-stage artifact changes in pipeline order.
	Stages []StageDelta `json:"stages"`

	// NewFindings contains findings that are new in the current run.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings contains findings that were in the previous run but not in current.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// RiskChange describes the overall change in risk level.
	RiskChange RiskChange `json:"risk_change"`
}

// RunMetadata contains metadata about a run for comparison display.
type RunMetadata struct {
	ID            string          `json:"id"`
	StartedAt     time.Time       `json:"started_at"`
	Mode          string          `json:"mode"`
	Status        model.RunStatus `json:"status"`
	TotalFindings int             `json:"total_findings"`
	CriticalCount int             `json:"critical_count"`
	HighCount     int             `json:"high_count"`
	MediumCount   int             `json:"medium_count"`
	LowCount      int             `json:"low_count"`
	InfoCount     int             `json:"info_count"`
}

// StageDelta is the change of one stage's artifact between runs.
type StageDelta struct {
	Stage          string            `json:"stage"`
	PreviousStatus model.StageStatus `json:"previous_status,omitempty"`
	CurrentStatus  model.StageStatus `json:"current_status,omitempty"`
	PreviousLines  int               `json:"previous_lines"`
	CurrentLines   int               `json:"current_lines"`
	LineDelta      int               `json:"line_delta"`
	// ContentChanged is true when both runs fingerprinted the artifact and
	// the digests differ.
	ContentChanged bool `json:"content_changed"`
}

// RiskChange describes the change in risk level between runs.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction     string `json:"direction"`
	CriticalDelta int    `json:"critical_delta"`
	HighDelta     int    `json:"high_delta"`
	MediumDelta   int    `json:"medium_delta"`
	LowDelta      int    `json:"low_delta"`
	InfoDelta     int    `json:"info_delta"`
}

func newRunMetadata(run database.RunSummary) RunMetadata {
	counts := severityCounts(run.Findings)
	return RunMetadata{
		ID:            run.ID,
		StartedAt:     run.StartedAt,
		Mode:          run.Mode,
		Status:        run.Status,
		TotalFindings: len(run.Findings),
		CriticalCount: counts[model.SeverityCritical],
		HighCount:     counts[model.SeverityHigh],
		MediumCount:   counts[model.SeverityMedium],
		LowCount:      counts[model.SeverityLow],
		InfoCount:     counts[model.SeverityInfo],
	}
}

// compareRuns compares two runs and their stages.
func compareRuns(previous database.RunSummary, prevStages []database.StageEntry, current database.RunSummary, curStages []database.StageEntry) *ComparisonResult {
	result := &ComparisonResult{
		Target:      current.Target,
		PreviousRun: newRunMetadata(previous),
		CurrentRun:  newRunMetadata(current),
	}
	result.Stages = compareStages(prevStages, curStages)

	previousFindings := make(map[string]model.Finding, len(previous.Findings))
	for _, f := range previous.Findings {
		previousFindings[findingKey(f)] = f
	}
	currentFindings := make(map[string]model.Finding, len(current.Findings))
	for _, f := range current.Findings {
		currentFindings[findingKey(f)] = f
	}

	// Walk the slices, not the maps, so that output order is stable.
	for _, f := range current.Findings {
		if _, ok := previousFindings[findingKey(f)]; !ok {
			result.NewFindings = append(result.NewFindings, f)
		}
	}
	for _, f := range previous.Findings {
		if _, ok := currentFindings[findingKey(f)]; ok {
			result.UnchangedCount++
		} else {
			result.ResolvedFindings = append(result.ResolvedFindings, f)
		}
	}

	result.RiskChange = calculateRiskChange(result.PreviousRun, result.CurrentRun)
	return result
}

// compareStages pairs stages by name, in the current run's order followed
// by stages only the previous run reached.
func compareStages(prev, cur []database.StageEntry) []StageDelta {
	prevByName := make(map[string]database.StageEntry, len(prev))
	for _, s := range prev {
		prevByName[s.Stage] = s
	}

	deltas := make([]StageDelta, 0, len(cur))
	seen := make(map[string]bool, len(cur))
	for _, c := range cur {
		seen[c.Stage] = true
		d := StageDelta{
			Stage:         c.Stage,
			CurrentStatus: c.Status,
			CurrentLines:  c.Lines,
		}
		if p, ok := prevByName[c.Stage]; ok {
			d.PreviousStatus = p.Status
			d.PreviousLines = p.Lines
			d.ContentChanged = p.Fingerprint != "" && c.Fingerprint != "" && p.Fingerprint != c.Fingerprint
		}
		d.LineDelta = d.CurrentLines - d.PreviousLines
		deltas = append(deltas, d)
	}
	for _, p := range prev {
		if seen[p.Stage] {
			continue
		}
		deltas = append(deltas, StageDelta{
			Stage:          p.Stage,
			PreviousStatus: p.Status,
			PreviousLines:  p.Lines,
			LineDelta:      -p.Lines,
		})
	}
	return deltas
}

// findingKey identifies a finding across runs. Counts are not part of the
// key: a finding whose count changed is the same finding.
func findingKey(f model.Finding) string {
	return f.Stage + "|" + f.Label
}

// calculateRiskChange calculates the change in risk between two runs.
func calculateRiskChange(previous, current RunMetadata) RiskChange {
	change := RiskChange{
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
		InfoDelta:     current.InfoCount - previous.InfoCount,
	}

	// Critical and High severity changes have more weight
	previousScore := previous.CriticalCount*100 + previous.HighCount*50 + previous.MediumCount*10 + previous.LowCount*5 + previous.InfoCount
	currentScore := current.CriticalCount*100 + current.HighCount*50 + current.MediumCount*10 + current.LowCount*5 + current.InfoCount

	switch {
	case currentScore < previousScore:
		change.Direction = riskDirectionImproved
	case currentScore > previousScore:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}
	return change
}

// severityRows returns the per-severity comparison rows.
func severityRows(result *ComparisonResult) [][]string {
	p, c, d := result.PreviousRun, result.CurrentRun, result.RiskChange
	return [][]string{
		{"Critical", strconv.Itoa(p.CriticalCount), strconv.Itoa(c.CriticalCount), formatDelta(d.CriticalDelta)},
		{"High", strconv.Itoa(p.HighCount), strconv.Itoa(c.HighCount), formatDelta(d.HighDelta)},
		{"Medium", strconv.Itoa(p.MediumCount), strconv.Itoa(c.MediumCount), formatDelta(d.MediumDelta)},
		{"Low", strconv.Itoa(p.LowCount), strconv.Itoa(c.LowCount), formatDelta(d.LowDelta)},
		{"Info", strconv.Itoa(p.InfoCount), strconv.Itoa(c.InfoCount), formatDelta(d.InfoDelta)},
	}
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)
	md.H1("Run Comparison: " + result.Target)
	md.PlainText("")
	md.PlainTextf("**Risk Status:** %s", formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Started",
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"),
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"),
		"-",
	}}
	rows = append(rows, severityRows(result)...)
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(result.PreviousRun.TotalFindings) + "**",
		"**" + strconv.Itoa(result.CurrentRun.TotalFindings) + "**",
		"**" + formatDelta(result.CurrentRun.TotalFindings-result.PreviousRun.TotalFindings) + "**",
	})
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Stages")
	md.PlainText("")
	stageRows := make([][]string, 0, len(result.Stages))
	for _, s := range result.Stages {
		changed := ""
		if s.ContentChanged {
			changed = "✱"
		}
		stageRows = append(stageRows, []string{
			s.Stage,
			strconv.Itoa(s.PreviousLines),
			strconv.Itoa(s.CurrentLines),
			formatDelta(s.LineDelta),
			changed,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Stage", "Previous", "Current", "Change", "Content"},
		Rows:   stageRows,
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(result.NewFindings)))
		md.PlainText("")
		md.BulletList(findingLines(result.NewFindings, "**[%s]** %s: %d results in `%s`")...)
	}
	if len(result.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(result.ResolvedFindings)))
		md.PlainText("")
		md.BulletList(findingLines(result.ResolvedFindings, "~~**[%s]** %s: %d results in `%s`~~")...)
	}
	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d findings unchanged*", result.UnchangedCount)
	}
	return md.Build()
}

// findingLines formats findings with a severity, label, count, artifact layout.
func findingLines(findings []model.Finding, layout string) []string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf(layout, f.Severity, f.Label, f.Count, f.Artifact))
	}
	return lines
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) {
	fmt.Fprintf(w, "Run Comparison: %s\n", result.Target)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))

	fmt.Fprintf(w, "\nPrevious run: %s  %s (%s)\n", result.PreviousRun.ID,
		result.PreviousRun.StartedAt.Local().Format(historyTimeLayout), result.PreviousRun.Status)
	fmt.Fprintf(w, "Current run:  %s  %s (%s)\n", result.CurrentRun.ID,
		result.CurrentRun.StartedAt.Local().Format(historyTimeLayout), result.CurrentRun.Status)

	fmt.Fprintln(w, "\nFindings Summary:")
	fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 45))
	for _, row := range severityRows(result) {
		fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}
	fmt.Fprintln(w, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(w, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.PreviousRun.TotalFindings, result.CurrentRun.TotalFindings,
		formatDelta(result.CurrentRun.TotalFindings-result.PreviousRun.TotalFindings))

	changed := slices.ContainsFunc(result.Stages, func(s StageDelta) bool {
		return s.LineDelta != 0 || s.ContentChanged
	})
	if changed {
		fmt.Fprintln(w, "\nStage Changes:")
		for _, s := range result.Stages {
			if s.LineDelta == 0 && !s.ContentChanged {
				continue
			}
			note := ""
			if s.ContentChanged {
				note = "  (content changed)"
			}
			fmt.Fprintf(w, "  %-12s  %6d -> %-6d  %s%s\n", s.Stage, s.PreviousLines, s.CurrentLines, formatDelta(s.LineDelta), note)
		}
	}

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(w, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, line := range findingLines(result.NewFindings, "[+] [%s] %s: %d results in %s") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(w, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, line := range findingLines(result.ResolvedFindings, "[-] [%s] %s: %d results in %s") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(w, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
