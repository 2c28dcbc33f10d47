package model

import "fmt"

// Finding reports that a findings stage produced a non-empty artifact.
// It carries counts only; the artifact itself stays in the run directory.
type Finding struct {
	// Label is the human-readable alert label, e.g. "XSS Findings".
	Label string `json:"label"`

	// Stage is the stage that produced the artifact.
	Stage string `json:"stage"`

	// Count is the number of non-empty lines in the artifact.
	Count int `json:"count"`

	// Artifact is the artifact basename, e.g. "dalfox_xss.txt".
	Artifact string `json:"artifact"`

	// Target is the scanned domain.
	Target string `json:"target"`

	// Severity ranks the finding for report ordering.
	Severity Severity `json:"severity"`
}

// Message formats the finding as a one-line alert.
func (f Finding) Message() string {
	return fmt.Sprintf("[%s] %s: %d results in %s (%s)", f.Severity, f.Label, f.Count, f.Artifact, f.Target)
}
