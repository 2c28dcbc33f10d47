package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
	"golang.org/x/sync/errgroup"
)

// Factory prepares the pipeline and report of one target. It is called once
// per target, from the goroutine that will run it.
type Factory func(ctx context.Context, target string) (*Pipeline, *model.RunReport, error)

// BatchProcessor runs the pipeline over several targets concurrently.
// Each target gets its own pipeline, run directory and report.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
	onDone      func(report *model.RunReport, err error)
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of targets scanned at once.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithCompletion registers a callback invoked when a target finishes.
// It is called from the target's goroutine and must be safe for
// concurrent use.
func WithCompletion(fn func(report *model.RunReport, err error)) BatchOption {
	return func(b *BatchProcessor) {
		b.onDone = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans targets with at most the configured concurrency.
//
// Reports are returned in target order; a target that never started has a
// nil report. A block on any target halts the whole batch: ctx must be the
// kill-switch context shared by every runner, so the block cancels the
// other targets' running stages and ProcessBatch returns the
// *runner.BlockedError. Other per-target errors (no live hosts, a run
// directory that cannot be created) do not stop the remaining targets and
// are returned joined.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	reports := make([]*model.RunReport, len(targets))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				return context.Cause(gctx)
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			p, report, err := bp.factory(gctx, target)
			if err == nil {
				reports[i] = report
				err = p.Execute(gctx, report)
			}
			if bp.onDone != nil {
				bp.onDone(report, err)
			}
			if err == nil {
				bp.logger.Info("scan completed", "target", target)
				return nil
			}

			var blocked *runner.BlockedError
			if errors.As(err, &blocked) {
				return err
			}
			bp.logger.Warn("scan failed", "target", target, "error", err)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	if waitErr != nil {
		return reports, waitErr
	}
	return reports, errors.Join(errs...)
}
