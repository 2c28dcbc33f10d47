package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
)

// stepFactory returns a Factory whose pipelines run the steps built by mk.
func stepFactory(mk func(target string) []Step) Factory {
	return func(_ context.Context, target string) (*Pipeline, *model.RunReport, error) {
		p := New()
		p.AddSteps(mk(target)...)
		return p, model.NewRunReport("id-"+target, target, "ranger", "/tmp/"+target), nil
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepFactory(nil))
		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepFactory(nil), WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepFactory(nil), WithConcurrency(0))
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

// TestProcessBatch tests concurrent processing of several targets.
func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns reports in target order", func(t *testing.T) {
		t.Parallel()

		var completed atomic.Int32
		bp := NewBatchProcessor(
			stepFactory(func(target string) []Step {
				return []Step{&mockStep{name: "scan-" + target}}
			}),
			WithConcurrency(3),
			WithCompletion(func(*model.RunReport, error) { completed.Add(1) }),
		)

		targets := []string{"a.com", "b.com", "c.com"}
		reports, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, r := range reports {
			if r == nil || r.Target != targets[i] {
				t.Fatalf("report %d: got %+v, want target %s", i, r, targets[i])
			}
			if r.Status != model.RunCompleted {
				t.Errorf("report %d: status %s", i, r.Status)
			}
		}
		if completed.Load() != 3 {
			t.Errorf("completion callback called %d times, want 3", completed.Load())
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		bp := NewBatchProcessor(
			stepFactory(func(string) []Step {
				return []Step{&mockStep{
					name: "slow",
					doFunc: func(context.Context, *model.RunReport) error {
						n := running.Add(1)
						for {
							p := peak.Load()
							if n <= p || peak.CompareAndSwap(p, n) {
								break
							}
						}
						time.Sleep(20 * time.Millisecond)
						running.Add(-1)
						return nil
					},
				}}
			}),
			WithConcurrency(2),
		)

		if _, err := bp.ProcessBatch(context.Background(), []string{"a.com", "b.com", "c.com", "d.com", "e.com"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
		}
	})

	t.Run("no viable target does not stop other targets", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(
			stepFactory(func(target string) []Step {
				if target == "dead.com" {
					return []Step{&mockStep{
						name: "live-hosts",
						doFunc: func(context.Context, *model.RunReport) error {
							return &NoViableTargetError{Target: target}
						},
					}}
				}
				return []Step{&mockStep{name: "scan"}}
			}),
		)

		reports, err := bp.ProcessBatch(context.Background(), []string{"dead.com", "alive.com"})
		var nv *NoViableTargetError
		if !errors.As(err, &nv) || nv.Target != "dead.com" {
			t.Fatalf("expected NoViableTargetError for dead.com, got %v", err)
		}
		if reports[1] == nil || reports[1].Status != model.RunCompleted {
			t.Errorf("alive.com should complete, got %+v", reports[1])
		}
	})

	t.Run("factory errors are collected", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("cannot create run directory")
		bp := NewBatchProcessor(func(_ context.Context, target string) (*Pipeline, *model.RunReport, error) {
			if target == "bad.com" {
				return nil, nil, boom
			}
			return New(), model.NewRunReport("id", target, "ranger", "/tmp"), nil
		})

		reports, err := bp.ProcessBatch(context.Background(), []string{"bad.com", "good.com"})
		if !errors.Is(err, boom) {
			t.Errorf("expected factory error, got %v", err)
		}
		if reports[0] != nil {
			t.Error("failed target should have no report")
		}
		if reports[1] == nil {
			t.Error("good target should have a report")
		}
	})

	t.Run("a block cancels every other target", func(t *testing.T) {
		t.Parallel()

		ctx, kill := runner.NewKillSwitch(context.Background())
		defer kill.Release()

		var mu sync.Mutex
		var secondStepRan bool
		started := make(chan struct{})

		bp := NewBatchProcessor(
			stepFactory(func(target string) []Step {
				if target == "waf.com" {
					return []Step{&mockStep{
						name: "ports",
						doFunc: func(context.Context, *model.RunReport) error {
							<-started
							err := &runner.BlockedError{Stage: "ports", Signature: "Access Denied"}
							kill.Trip(err)
							return err
						},
					}}
				}
				return []Step{
					&mockStep{
						name: "long",
						doFunc: func(ctx context.Context, _ *model.RunReport) error {
							close(started)
							<-ctx.Done()
							return context.Cause(ctx)
						},
					},
					&mockStep{
						name: "after",
						doFunc: func(context.Context, *model.RunReport) error {
							mu.Lock()
							secondStepRan = true
							mu.Unlock()
							return nil
						},
					},
				}
			}),
			WithConcurrency(2),
		)

		reports, err := bp.ProcessBatch(ctx, []string{"waf.com", "slow.com"})
		var blocked *runner.BlockedError
		if !errors.As(err, &blocked) {
			t.Fatalf("expected BlockedError, got %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if secondStepRan {
			t.Error("other target kept running after the block")
		}
		for _, r := range reports {
			if r != nil && r.Status != model.RunBlocked {
				t.Errorf("%s: expected status blocked, got %s", r.Target, r.Status)
			}
		}
	})
}
