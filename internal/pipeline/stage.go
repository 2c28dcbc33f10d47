package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/checkpoint"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
)

// Stage is the immutable description of one external tool stage.
type Stage struct {
	// Name identifies the stage in logs, records and progress output.
	Name string

	// Tool is the configuration tool key: flag text, binary and extra
	// arguments are looked up under it.
	Tool string

	// Output is the artifact basename the tool writes.
	Output string

	// Alert is the findings label. Empty for stages whose output is not a
	// findings list.
	Alert string

	// Required stops the run with a NoViableTargetError when the output is
	// still missing or empty after the stage.
	Required bool

	// Inputs resolves the positional arguments, stdin and stdout of the
	// command. out is the output artifact path. Returning ErrMissingInput
	// skips the stage.
	Inputs func(env *Env, out string) (runner.Command, error)
}

// ToolStep runs a Stage through the checkpoint gate.
type ToolStep struct {
	stage Stage
	env   *Env
}

// NewToolStep binds stage to env.
func NewToolStep(stage Stage, env *Env) *ToolStep {
	return &ToolStep{stage: stage, env: env}
}

// Name returns the stage name.
func (s *ToolStep) Name() string {
	return s.stage.Name
}

// Stage returns the stage description.
func (s *ToolStep) Stage() Stage {
	return s.stage
}

// Do runs the stage unless its output is already complete.
func (s *ToolStep) Do(ctx context.Context, report *model.RunReport) error {
	env := s.env
	out := env.Path(s.stage.Output)
	start := time.Now()
	rec := model.StageRecord{
		Stage:    s.stage.Name,
		Tool:     s.stage.Tool,
		Artifact: out,
	}

	err := s.run(ctx, out, &rec, report)
	rec.Elapsed = time.Since(start)
	rec.Lines, _ = artifact.CountLines(out)
	report.AddStage(rec)
	if runner.IsFatal(err) {
		return err
	}

	// A failed or timed-out live check leaves no live hosts just like an empty one.
	if s.stage.Required && !checkpoint.ShouldSkip(out) {
		return &NoViableTargetError{Target: env.Target, Artifact: out, Err: err}
	}
	return err
}

func (s *ToolStep) run(ctx context.Context, out string, rec *model.StageRecord, report *model.RunReport) error {
	env := s.env

	// Cached stages must not resolve inputs.
	if checkpoint.ShouldSkip(out) {
		rec.Status = model.StageSkipped
		rec.Diagnostic = "checkpoint: output already complete"
		s.recordFinding(report, out)
		return nil
	}

	cmd, err := s.stage.Inputs(env, out)
	if errors.Is(err, ErrMissingInput) {
		rec.Status = model.StageSkipped
		rec.Diagnostic = err.Error()
		env.logger.Info("skipping stage", "stage", s.stage.Name, "reason", err)
		return nil
	}
	if err != nil {
		rec.Status = model.StageFailed
		rec.Diagnostic = err.Error()
		return fmt.Errorf("stage %s: %w", s.stage.Name, err)
	}
	cmd.Name = env.Mode.Binary(s.stage.Tool)
	cmd.Flags = env.Mode.Flags(s.stage.Tool)
	cmd.Extra = env.Mode.Extra(s.stage.Tool)

	res, cached, err := env.gate.Run(ctx, s.stage.Name, out, cmd, env.Policy())
	if cached {
		rec.Status = model.StageSkipped
		rec.Diagnostic = "checkpoint: output already complete"
		return nil
	}
	rec.Status = model.StageSuccess
	if err != nil {
		rec.Status = model.StageFailed
	}
	if res != nil {
		rec.Attempts = len(res.Attempts)
		rec.Throttles = res.Throttles
		rec.Status = stageStatus(res.Outcome)
	}
	if err != nil {
		rec.Diagnostic = err.Error()
	}
	if !runner.IsFatal(err) {
		if f, ok := s.recordFinding(report, out); ok {
			s.alert(ctx, f)
		}
	}
	return err
}

// recordFinding adds a finding to report when the stage has an alert label
// and its output is non-empty.
func (s *ToolStep) recordFinding(report *model.RunReport, out string) (model.Finding, bool) {
	if s.stage.Alert == "" {
		return model.Finding{}, false
	}
	n, err := artifact.CountLines(out)
	if err != nil || n == 0 {
		return model.Finding{}, false
	}
	f := model.Finding{
		Label:    s.stage.Alert,
		Stage:    s.stage.Name,
		Count:    n,
		Artifact: s.stage.Output + artifact.Extension,
		Target:   s.env.Target,
		Severity: model.SeverityOf(s.stage.Alert),
	}
	report.AddFinding(f)
	return f, true
}

func (s *ToolStep) alert(ctx context.Context, f model.Finding) {
	s.env.logger.Warn("findings detected",
		"stage", f.Stage,
		"label", f.Label,
		"count", f.Count,
		"artifact", f.Artifact,
	)
	if s.env.alerter == nil {
		return
	}
	if err := s.env.alerter.Alert(ctx, f); err != nil {
		s.env.logger.Warn("failed to send alert", "label", f.Label, "error", err)
	}
}

func stageStatus(o runner.Outcome) model.StageStatus {
	switch o {
	case runner.OutcomeSuccess:
		return model.StageSuccess
	case runner.OutcomeBlocked:
		return model.StageBlocked
	case runner.OutcomeTimedOut:
		return model.StageTimedOut
	default:
		return model.StageFailed
	}
}

// MergeStep unions URL artifacts into the canonical clean URL list.
type MergeStep struct {
	env    *Env
	inputs []string
	output string
}

// NewMergeStep creates a step merging the named artifacts into output.
func NewMergeStep(env *Env, output string, inputs ...string) *MergeStep {
	return &MergeStep{env: env, inputs: inputs, output: output}
}

// Name returns the step name.
func (s *MergeStep) Name() string {
	return "merge"
}

// Do merges the inputs. A complete output is reused.
func (s *MergeStep) Do(_ context.Context, report *model.RunReport) error {
	start := time.Now()
	out := s.env.Path(s.output)
	rec := model.StageRecord{Stage: s.Name(), Artifact: out, Status: model.StageSuccess}

	cached := checkpoint.ShouldSkip(out)
	paths := make([]string, len(s.inputs))
	for i, in := range s.inputs {
		paths[i] = s.env.Path(in)
	}
	_, err := artifact.Merge(paths, out)
	switch {
	case err != nil:
		rec.Status = model.StageFailed
		rec.Diagnostic = err.Error()
	case cached:
		rec.Status = model.StageSkipped
		rec.Diagnostic = "checkpoint: output already complete"
	}
	rec.Elapsed = time.Since(start)
	rec.Lines, _ = artifact.CountLines(out)
	report.AddStage(rec)
	if err != nil {
		return fmt.Errorf("stage %s: %w", s.Name(), err)
	}
	return nil
}

// FilterStep keeps the lines of one artifact that contain a token.
type FilterStep struct {
	env    *Env
	name   string
	input  string
	output string
	token  string
}

// NewFilterStep creates a step writing the lines of input containing token
// to output.
func NewFilterStep(env *Env, name, input, output, token string) *FilterStep {
	return &FilterStep{env: env, name: name, input: input, output: output, token: token}
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return s.name
}

// Do filters the input. A missing input skips the step.
func (s *FilterStep) Do(_ context.Context, report *model.RunReport) error {
	start := time.Now()
	out := s.env.Path(s.output)
	rec := model.StageRecord{Stage: s.name, Artifact: out, Status: model.StageSuccess}

	in, err := s.env.require(s.input)
	if err != nil {
		rec.Status = model.StageSkipped
		rec.Diagnostic = err.Error()
	} else {
		_, cached, ferr := artifact.FilterLines(in, out, s.token)
		switch {
		case ferr != nil:
			rec.Status = model.StageFailed
			rec.Diagnostic = ferr.Error()
			err = ferr
		case cached:
			rec.Status = model.StageSkipped
			rec.Diagnostic = "checkpoint: output already complete"
		}
	}
	rec.Elapsed = time.Since(start)
	rec.Lines, _ = artifact.CountLines(out)
	report.AddStage(rec)
	if rec.Status == model.StageFailed {
		return fmt.Errorf("stage %s: %w", s.name, err)
	}
	return nil
}
