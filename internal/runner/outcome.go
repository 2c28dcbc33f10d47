package runner

import (
	"bytes"
	"time"
)

// Outcome classifies how a stage execution ended.
type Outcome int

const (
	// OutcomeSuccess means the process exited with status zero.
	OutcomeSuccess Outcome = iota

	// OutcomeFailed means the process exited non-zero (or could not start)
	// and retries were exhausted or throttling could not help.
	OutcomeFailed

	// OutcomeBlocked means a block signature appeared in the output.
	OutcomeBlocked

	// OutcomeTimedOut means the last attempt hit the stage timeout.
	OutcomeTimedOut
)

// String returns the outcome name used in logs and reports.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Policy bounds one stage's execution.
type Policy struct {
	// Timeout limits each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration

	// Retries is the number of extra attempts allowed after the first.
	Retries int
}

// Attempt records one spawn of a stage's command. Attempts are kept only
// for the duration of a Run and are not persisted.
type Attempt struct {
	// Argv is the exact argument vector used.
	Argv []string

	// Elapsed is the wall time from start to exit.
	Elapsed time.Duration

	// Stdout and Stderr hold captured output, capped at the Runner's limit.
	Stdout []byte
	Stderr []byte

	// ExitCode is the process exit status, or -1 when unavailable.
	ExitCode int

	// Started is set once the process was spawned.
	Started bool

	// TimedOut is set when the attempt was killed by the stage timeout.
	TimedOut bool

	// Truncated is set when either stream exceeded the capture limit.
	Truncated bool

	// Err is the start or wait error, if any.
	Err error
}

// Output returns stdout and stderr concatenated.
func (a *Attempt) Output() string {
	return string(a.Stdout) + string(a.Stderr)
}

// Diagnostic returns the text most useful for explaining a failure:
// stderr if present, otherwise stdout, otherwise the process error.
func (a *Attempt) Diagnostic() string {
	switch {
	case len(bytes.TrimSpace(a.Stderr)) > 0:
		return string(bytes.TrimSpace(a.Stderr))
	case len(bytes.TrimSpace(a.Stdout)) > 0:
		return string(bytes.TrimSpace(a.Stdout))
	case a.Err != nil:
		return a.Err.Error()
	default:
		return ""
	}
}

// Result is the typed outcome of Runner.Run.
type Result struct {
	// Stage is the stage name the command ran for.
	Stage string

	// Outcome is the final classification.
	Outcome Outcome

	// Attempts lists every spawn in order.
	Attempts []*Attempt

	// Throttles counts how many times flags were rewritten for a retry.
	Throttles int

	// Signature is the matched block signature when Outcome is OutcomeBlocked.
	Signature string

	// Elapsed is the total wall time across attempts.
	Elapsed time.Duration
}

// Last returns the final attempt, or nil when nothing was spawned.
func (r *Result) Last() *Attempt {
	if r == nil || len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1]
}
