package model

import "time"

// StageStatus is how a single stage ended.
type StageStatus string

const (
	// StageSuccess means the tool exited zero (or the in-process step finished).
	StageSuccess StageStatus = "success"
	// StageSkipped means the stage did not run: its output was already
	// complete or its input was missing.
	StageSkipped StageStatus = "skipped"
	// StageFailed means the tool exited non-zero or could not be started.
	StageFailed StageStatus = "failed"
	// StageTimedOut means every attempt exceeded the stage timeout.
	StageTimedOut StageStatus = "timed_out"
	// StageBlocked means the tool's output matched a block signature.
	StageBlocked StageStatus = "blocked"
)

// StageRecord is the outcome of one stage within a run.
type StageRecord struct {
	// Stage is the stage name, e.g. "live-hosts".
	Stage string `json:"stage"`

	// Tool is the tool key the stage ran, empty for in-process stages.
	Tool string `json:"tool,omitempty"`

	// Status is how the stage ended.
	Status StageStatus `json:"status"`

	// Attempts is the number of process launches.
	Attempts int `json:"attempts"`

	// Throttles is how many times the flags were throttled before a retry.
	Throttles int `json:"throttles"`

	// Elapsed is the wall time spent in the stage.
	Elapsed time.Duration `json:"elapsed"`

	// Artifact is the path of the stage's output file.
	Artifact string `json:"artifact,omitempty"`

	// Lines is the number of non-empty lines in the artifact after the stage.
	Lines int `json:"lines"`

	// Diagnostic explains a skip or failure.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// OK reports whether the stage left a usable artifact behind.
func (s StageRecord) OK() bool {
	return s.Status == StageSuccess || (s.Status == StageSkipped && s.Lines > 0)
}
