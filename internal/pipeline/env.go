package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/checkpoint"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
)

// Alerter is told about non-empty findings artifacts. *notify.Notifier
// implements it.
type Alerter interface {
	Alert(ctx context.Context, f model.Finding) error
}

// Env is everything the stages of one target's run share.
type Env struct {
	// Target is the scanned root domain.
	Target string

	// Run is the run working directory.
	Run *artifact.RunContext

	// Mode holds the (decorated) tool settings.
	Mode config.ModeConfig

	gate     *checkpoint.Gate
	alerter  Alerter
	wordlist string
	logger   *slog.Logger
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithAlerter sets the findings alerter. Without one, findings are only
// recorded in the report.
func WithAlerter(a Alerter) EnvOption {
	return func(e *Env) {
		e.alerter = a
	}
}

// WithWordlist sets the directory-busting wordlist path.
func WithWordlist(path string) EnvOption {
	return func(e *Env) {
		e.wordlist = path
	}
}

// WithEnvLogger sets the logger used by stages.
func WithEnvLogger(logger *slog.Logger) EnvOption {
	return func(e *Env) {
		e.logger = logger
	}
}

// NewEnv creates the shared environment of one run. Tool stages execute
// through exec behind a checkpoint gate.
func NewEnv(target string, rc *artifact.RunContext, mode config.ModeConfig, exec checkpoint.Executor, opts ...EnvOption) *Env {
	e := &Env{
		Target: target,
		Run:    rc,
		Mode:   mode,
		gate:   checkpoint.NewGate(exec),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Path returns the path of the named artifact in the run directory.
func (e *Env) Path(name string) string {
	return e.Run.Path(name)
}

// Policy returns the execution policy of the mode.
func (e *Env) Policy() runner.Policy {
	return runner.Policy{
		Timeout: e.Mode.StageTimeout(),
		Retries: e.Mode.RetryBudget(),
	}
}

// complete returns the path of the first named artifact that is complete.
func (e *Env) complete(names ...string) (string, bool) {
	for _, n := range names {
		if p := e.Path(n); checkpoint.ShouldSkip(p) {
			return p, true
		}
	}
	return "", false
}

// require returns the path of the first complete artifact among names, or
// ErrMissingInput.
func (e *Env) require(names ...string) (string, error) {
	if p, ok := e.complete(names...); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %v", ErrMissingInput, names)
}

// seed returns a one-line list file holding just the target, creating it
// when needed. Stages fall back to it when no enumeration result exists.
func (e *Env) seed() (string, error) {
	p := e.Path(artifact.TargetSeed)
	if checkpoint.ShouldSkip(p) {
		return p, nil
	}
	if err := artifact.WriteLines(p, []string{e.Target}); err != nil {
		return "", fmt.Errorf("failed to write target seed: %w", err)
	}
	return p, nil
}

// ResolveWordlist returns preferred when it is a non-empty file, else
// fallback when that is, else "".
func ResolveWordlist(preferred, fallback string) string {
	for _, p := range []string{preferred, fallback} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return p
		}
	}
	return ""
}
