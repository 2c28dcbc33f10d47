package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BlockedError reports that a stage's output matched a block signature.
// It halts the entire run, whatever retry budget is left.
type BlockedError struct {
	Stage     string
	Signature string
}

// Error implements error.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("stage %s blocked: output matched signature %q", e.Stage, e.Signature)
}

// StageTimeoutError reports that a stage timed out on its last attempt.
// It is recorded and the pipeline moves on.
type StageTimeoutError struct {
	Stage      string
	Timeout    time.Duration
	Attempts   int
	Diagnostic string
}

// Error implements error.
func (e *StageTimeoutError) Error() string {
	msg := fmt.Sprintf("stage %s timed out after %s (%d attempts)", e.Stage, e.Timeout, e.Attempts)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

// StageExecutionError reports a non-zero exit, or a failure to start, that
// did not match a block signature. It is recorded and the pipeline moves on.
type StageExecutionError struct {
	Stage      string
	ExitCode   int
	Attempts   int
	Diagnostic string
	Err        error
}

// Error implements error.
func (e *StageExecutionError) Error() string {
	msg := fmt.Sprintf("stage %s failed with exit code %d (%d attempts)", e.Stage, e.ExitCode, e.Attempts)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

// Unwrap returns the underlying process error.
func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must halt the pipeline. Blocks and
// cancellation are fatal; stage timeouts and execution errors are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
