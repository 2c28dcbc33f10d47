package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each appending its StageRecord to the
// shared report.
type Step interface {
	// Do executes the pipeline step.
	// Non-fatal problems (a tool that failed or timed out) are recorded in
	// the report and returned; the pipeline logs them and moves on. Errors
	// for which Halts is true stop the run.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// EventKind identifies a progress event.
type EventKind int

const (
	// EventStarting is emitted before a step runs.
	EventStarting EventKind = iota
	// EventSkipped is emitted when a step ended without running its tool.
	EventSkipped
	// EventFinished is emitted when a step ran, whatever its outcome.
	EventFinished
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStarting:
		return "starting"
	case EventSkipped:
		return "skipped"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event reports pipeline progress to observers.
type Event struct {
	Kind   EventKind
	Step   string
	Index  int // 1-based
	Total  int
	Target string
	// Record is the stage record the step appended. Nil for EventStarting.
	Record *model.StageRecord
	// Err is the error the step returned, if any.
	Err error
}

// Observer receives progress events. Observers are called synchronously
// from the goroutine running the pipeline.
type Observer func(Event)

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// observers receive progress events.
	observers []Observer
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and sets the final status of
// report.
//
// Stage failures and timeouts are logged and the run continues. A block,
// a cancellation (including one caused by another target's block) or a
// NoViableTargetError stops the run and is returned. Cancellation is
// checked before each step; a running step is stopped by its own context.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) (err error) {
	defer func() {
		report.Finish(runStatus(err), err)
	}()

	total := len(p.steps)
	for i, step := range p.steps {
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", report.Target,
				"reason", cause,
			)
			return cause
		}

		p.emit(Event{Kind: EventStarting, Step: step.Name(), Index: i + 1, Total: total, Target: report.Target})
		p.logger.Info("executing step",
			"step", step.Name(),
			"target", report.Target,
		)

		before := len(report.Stages)
		stepErr := step.Do(ctx, report)

		ev := Event{Kind: EventFinished, Step: step.Name(), Index: i + 1, Total: total, Target: report.Target, Err: stepErr}
		if len(report.Stages) > before {
			rec := report.Stages[len(report.Stages)-1]
			ev.Record = &rec
			if rec.Status == model.StageSkipped {
				ev.Kind = EventSkipped
			}
		}
		p.emit(ev)

		if stepErr == nil {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"target", report.Target,
			)
			continue
		}
		if Halts(stepErr) {
			p.logger.Error("step halted the pipeline",
				"step", step.Name(),
				"target", report.Target,
				"error", stepErr,
			)
			return stepErr
		}
		p.logger.Warn("step failed, continuing",
			"step", step.Name(),
			"target", report.Target,
			"error", stepErr,
		)
	}

	return nil
}

func (p *Pipeline) emit(ev Event) {
	for _, o := range p.observers {
		o(ev)
	}
}

// runStatus maps the error that ended a run to its final status.
func runStatus(err error) model.RunStatus {
	if err == nil {
		return model.RunCompleted
	}
	var blocked *runner.BlockedError
	if errors.As(err, &blocked) {
		return model.RunBlocked
	}
	var nv *NoViableTargetError
	if errors.As(err, &nv) {
		return model.RunNoViableTarget
	}
	return model.RunAborted
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
