package model

import (
	"time"
)

// RunStatus is the final state of one target's pipeline run.
type RunStatus string

const (
	// RunRunning is set while stages are still executing.
	RunRunning RunStatus = "running"
	// RunCompleted means every stage was attempted. Individual stages may
	// still have failed or timed out.
	RunCompleted RunStatus = "completed"
	// RunNoViableTarget means no live hosts were found and the run stopped early.
	RunNoViableTarget RunStatus = "no_viable_target"
	// RunBlocked means a WAF or rate-limit signature halted the run.
	RunBlocked RunStatus = "blocked"
	// RunAborted means the run was cancelled (signal or another target's block).
	RunAborted RunStatus = "aborted"
)

// RunReport is the record of one pipeline run over one target.
// Steps append to Stages in execution order; the orchestrator sets Status
// and FinishedAt when the run ends.
type RunReport struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Target is the scanned root domain.
	Target string `json:"target"`

	// Mode is the name of the configuration mode used.
	Mode string `json:"mode"`

	// Dir is the run working directory.
	Dir string `json:"dir"`

	// StartedAt is when the pipeline started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the pipeline ended. Zero while running.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Stages holds one record per stage in execution order.
	Stages []StageRecord `json:"stages"`

	// Findings lists the non-empty findings artifacts.
	Findings []Finding `json:"findings,omitempty"`

	// Status is the final run state.
	Status RunStatus `json:"status"`

	// Error is the text of the error that ended the run, if any.
	Error string `json:"error,omitempty"`
}

// NewRunReport creates a RunReport in the running state.
func NewRunReport(id, target, mode, dir string) *RunReport {
	return &RunReport{
		ID:        id,
		Target:    target,
		Mode:      mode,
		Dir:       dir,
		StartedAt: time.Now(),
		Status:    RunRunning,
	}
}

// AddStage appends a stage record.
func (r *RunReport) AddStage(rec StageRecord) {
	r.Stages = append(r.Stages, rec)
}

// AddFinding appends a finding.
func (r *RunReport) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Finish records the final status and error.
func (r *RunReport) Finish(status RunStatus, err error) {
	r.FinishedAt = time.Now()
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the run took, or has taken so far.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Stage returns the record of the named stage, if present.
func (r *RunReport) Stage(name string) (StageRecord, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageRecord{}, false
}

// CountByStatus returns how many stages ended with the given status.
func (r *RunReport) CountByStatus(status StageStatus) int {
	n := 0
	for _, s := range r.Stages {
		if s.Status == status {
			n++
		}
	}
	return n
}

// FindingsBySeverity returns the findings of the given severity in the
// order they were recorded.
func (r *RunReport) FindingsBySeverity(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// CountBySeverity returns how many findings have the given severity.
func (r *RunReport) CountBySeverity(s Severity) int {
	return len(r.FindingsBySeverity(s))
}

// HasFindings reports whether any findings stage produced results.
func (r *RunReport) HasFindings() bool {
	return len(r.Findings) > 0
}
