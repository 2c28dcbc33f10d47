package pipeline

import (
	"errors"
	"fmt"

	"github.com/nao1215/autokuro/internal/runner"
)

// ErrMissingInput is returned by a stage's input resolution when an input
// artifact does not exist. The stage is recorded as skipped and the
// pipeline continues.
var ErrMissingInput = errors.New("required input artifact is missing or empty")

// NoViableTargetError reports that the live-host stage left no live hosts.
// Every later stage depends on them, so the run stops. Err holds the stage
// failure, if any, that left the artifact empty.
type NoViableTargetError struct {
	Target   string
	Artifact string
	Err      error
}

// Error implements error.
func (e *NoViableTargetError) Error() string {
	msg := fmt.Sprintf("no live hosts found for %s: %s is missing or empty", e.Target, e.Artifact)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the stage failure.
func (e *NoViableTargetError) Unwrap() error {
	return e.Err
}

// Halts reports whether err stops a pipeline run: a block, a cancellation,
// or a target without live hosts.
func Halts(err error) bool {
	if runner.IsFatal(err) {
		return true
	}
	var nv *NoViableTargetError
	return errors.As(err, &nv)
}
