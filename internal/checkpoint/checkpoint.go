// Package checkpoint decides whether a stage's work already exists.
//
// The only completeness signal is the artifact itself: a stage is done when
// its output file exists and is non-empty. There is no manifest, timestamp or
// content hash, so a killed run can always be restarted and will skip every
// stage whose artifact is complete.
//
// Known limitation: a truncated or corrupt artifact that is still non-empty
// is treated as complete on resume. Delete the file to force the stage to
// run again.
package checkpoint

import (
	"context"
	"os"

	"github.com/nao1215/autokuro/internal/runner"
)

// ShouldSkip reports whether path exists as a regular file with size > 0.
func ShouldSkip(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Executor runs one stage command. *runner.Runner implements it.
type Executor interface {
	Run(ctx context.Context, stage string, cmd runner.Command, policy runner.Policy) (*runner.Result, error)
}

// Gate short-circuits stages whose output artifact is already complete.
type Gate struct {
	exec Executor
}

// NewGate creates a Gate that delegates to exec.
func NewGate(exec Executor) *Gate {
	return &Gate{exec: exec}
}

// Run executes cmd unless output is already complete. cached is true when
// the stage was skipped; the Result is nil in that case.
func (g *Gate) Run(ctx context.Context, stage, output string, cmd runner.Command, policy runner.Policy) (res *runner.Result, cached bool, err error) {
	if ShouldSkip(output) {
		return nil, true, nil
	}
	res, err = g.exec.Run(ctx, stage, cmd, policy)
	return res, false, err
}
