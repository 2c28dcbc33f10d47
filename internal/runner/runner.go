package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/nao1215/autokuro/internal/signature"
	"github.com/nao1215/autokuro/internal/throttle"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxCapture is the per-stream capture limit for one attempt.
	DefaultMaxCapture = 8 << 20

	// DefaultWaitDelay is how long the Runner waits for output streams to
	// close after the process has exited or been killed.
	DefaultWaitDelay = 5 * time.Second
)

// Runner executes stage commands with timeout, retry and block detection.
// A Runner holds no per-run state and may be shared across stages.
type Runner struct {
	matcher    *signature.Matcher
	kill       *KillSwitch
	logger     *slog.Logger
	throttle   func(string) (string, bool)
	maxCapture int
	waitDelay  time.Duration
	dir        string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for attempt and retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithKillSwitch sets the switch tripped when a block is detected.
func WithKillSwitch(k *KillSwitch) Option {
	return func(r *Runner) {
		r.kill = k
	}
}

// WithThrottler replaces the flag throttler used between retries.
func WithThrottler(fn func(string) (string, bool)) Option {
	return func(r *Runner) {
		if fn != nil {
			r.throttle = fn
		}
	}
}

// WithMaxCapture sets the per-stream capture limit in bytes.
func WithMaxCapture(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxCapture = n
		}
	}
}

// WithWaitDelay sets how long to wait for output streams after exit.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.waitDelay = d
		}
	}
}

// WithWorkDir sets the working directory of spawned processes.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// New creates a Runner that checks output against matcher.
// A nil matcher disables block detection.
func New(matcher *signature.Matcher, opts ...Option) *Runner {
	r := &Runner{
		matcher:    matcher,
		throttle:   throttle.Throttle,
		maxCapture: DefaultMaxCapture,
		waitDelay:  DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run executes cmd for stage under policy and returns the typed result.
//
// The error is nil on success. Otherwise it is a *BlockedError (fatal, the
// kill switch has already been tripped), a *StageTimeoutError or a
// *StageExecutionError (both non-fatal), or the cancellation cause of ctx.
// The Result is always non-nil.
func (r *Runner) Run(ctx context.Context, stage string, cmd Command, policy Policy) (*Result, error) {
	res := &Result{Stage: stage}
	start := time.Now()
	budget := policy.Retries
	current := cmd

	for {
		if ctx.Err() != nil {
			res.Outcome = OutcomeFailed
			res.Elapsed = time.Since(start)
			return res, context.Cause(ctx)
		}

		r.logger.Debug("starting attempt",
			"stage", stage,
			"attempt", len(res.Attempts)+1,
			"command", current.String(),
		)
		att := r.attempt(ctx, current, policy.Timeout)
		res.Attempts = append(res.Attempts, att)
		res.Elapsed = time.Since(start)

		// A block overrides everything else, timed-out attempts included.
		if blocked, sig := r.matcher.Match(att.Output()); blocked {
			res.Outcome = OutcomeBlocked
			res.Signature = sig
			err := &BlockedError{Stage: stage, Signature: sig}
			r.logger.Error("block signature detected, halting run",
				"stage", stage,
				"signature", sig,
			)
			r.kill.Trip(err)
			return res, err
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeFailed
			return res, context.Cause(ctx)
		}

		switch {
		case att.TimedOut:
			if budget > 0 {
				budget--
				next, changed := r.throttle(current.Flags)
				if changed {
					res.Throttles++
				}
				r.logger.Warn("stage timed out, retrying",
					"stage", stage,
					"timeout", policy.Timeout,
					"retriesLeft", budget,
					"throttled", changed,
					"flags", next,
				)
				current = current.WithFlags(next)
				continue
			}
			res.Outcome = OutcomeTimedOut
			return res, &StageTimeoutError{
				Stage:      stage,
				Timeout:    policy.Timeout,
				Attempts:   len(res.Attempts),
				Diagnostic: att.Diagnostic(),
			}

		case att.ExitCode == 0 && att.Err == nil:
			res.Outcome = OutcomeSuccess
			return res, nil

		case att.Started && budget > 0:
			next, changed := r.throttle(current.Flags)
			if changed {
				budget--
				res.Throttles++
				r.logger.Warn("stage failed, retrying with throttled flags",
					"stage", stage,
					"exitCode", att.ExitCode,
					"retriesLeft", budget,
					"flags", next,
				)
				current = current.WithFlags(next)
				continue
			}
			r.logger.Debug("throttling cannot change flags, giving up", "stage", stage)
		}

		res.Outcome = OutcomeFailed
		return res, &StageExecutionError{
			Stage:      stage,
			ExitCode:   att.ExitCode,
			Attempts:   len(res.Attempts),
			Diagnostic: att.Diagnostic(),
			Err:        att.Err,
		}
	}
}

// attempt spawns the command once. It never returns nil.
func (r *Runner) attempt(ctx context.Context, cmd Command, timeout time.Duration) *Attempt {
	att := &Attempt{ExitCode: -1}

	argv, err := cmd.Argv()
	if err != nil {
		att.Err = err
		return att
	}
	att.Argv = argv

	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(actx, argv[0], argv[1:]...) //nolint:gosec // argv comes from structured stage descriptors
	c.Dir = r.dir

	if cmd.Stdin != "" {
		in, err := os.Open(cmd.Stdin)
		if err != nil {
			att.Err = fmt.Errorf("failed to open stdin file: %w", err)
			return att
		}
		defer in.Close()
		c.Stdin = in
	}

	var tee io.Writer
	if cmd.Stdout != "" {
		f, err := os.OpenFile(cmd.Stdout, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			att.Err = fmt.Errorf("failed to create stdout file: %w", err)
			return att
		}
		defer f.Close()
		tee = f
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		att.Err = err
		return att
	}
	defer outR.Close()
	errR, errW, err := os.Pipe()
	if err != nil {
		outW.Close()
		att.Err = err
		return att
	}
	defer errR.Close()
	c.Stdout = outW
	c.Stderr = errW

	started := time.Now()
	err = c.Start()
	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()
	if err != nil {
		att.Err = err
		return att
	}
	att.Started = true

	stdout := newCappedBuffer(r.maxCapture)
	stderr := newCappedBuffer(r.maxCapture)
	var g errgroup.Group
	g.Go(func() error {
		var w io.Writer = stdout
		if tee != nil {
			w = io.MultiWriter(tee, stdout)
		}
		_, err := io.Copy(w, outR)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderr, errR)
		return err
	})

	waitErr := c.Wait()
	att.Elapsed = time.Since(started)
	att.TimedOut = killedByDeadline(actx, ctx, waitErr)

	// Grandchildren may keep the pipes open after the child is gone.
	drained := make(chan error, 1)
	go func() { drained <- g.Wait() }()
	select {
	case err := <-drained:
		if err != nil && !errors.Is(err, os.ErrClosed) {
			r.logger.Debug("output drain error", "error", err)
		}
	case <-time.After(r.waitDelay):
		outR.Close()
		errR.Close()
		<-drained
	}

	att.Stdout = stdout.Bytes()
	att.Stderr = stderr.Bytes()
	att.Truncated = stdout.truncated || stderr.truncated
	if c.ProcessState != nil {
		att.ExitCode = c.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		att.Err = waitErr
	}
	return att
}

// killedByDeadline reports whether the attempt context's own deadline ended
// the child. A child that exited cleanly is never timed out, even if the
// deadline passed while its output was still draining.
func killedByDeadline(attempt, parent context.Context, waitErr error) bool {
	return waitErr != nil &&
		errors.Is(attempt.Err(), context.DeadlineExceeded) &&
		parent.Err() == nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest
// while still reporting full writes, so the process is never blocked.
type cappedBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf
}
