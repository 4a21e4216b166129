package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/crawlmd/internal/model"
	"golang.org/x/sync/errgroup"
)

// PipelineFactory builds the pipeline for one target.
type PipelineFactory func(target string) *Pipeline

// BatchProcessor crawls several targets with bounded concurrency.
// Each target gets its own pipeline, spider and state; a single crawl
// stays strictly sequential.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on a single run
// 2. Per-target settings are resolved by the factory, not the pipeline
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each target.
	pipelineFactory PipelineFactory

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// onComplete is called after each target finishes.
	onComplete func(run *model.CrawlRun, index int)

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithOnComplete sets a callback run after each target finishes.
// It is called from the worker goroutine, so it must be safe for
// concurrent use when concurrency is above 1.
func WithOnComplete(fn func(run *model.CrawlRun, index int)) BatchOption {
	return func(b *BatchProcessor) {
		b.onComplete = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor that crawls one target
// at a time unless WithConcurrency says otherwise.
func NewBatchProcessor(factory PipelineFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: factory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every target and returns the runs in target order.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because errgroup already bounds the goroutines and propagates
// cancellation.
//
// A failed crawl does not stop the others; its error stays on its run.
// A target that never started because the context was cancelled has a
// run carrying the context error. The returned error is the context
// error, if any.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.CrawlRun, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	runs := make([]*model.CrawlRun, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			run := model.NewCrawlRun(target)
			runs[i] = run

			if err := ctx.Err(); err != nil {
				run.SetError(err)
				return nil
			}

			if err := bp.pipelineFactory(target).Execute(ctx, run); err != nil {
				bp.logger.Warn("crawl failed",
					"target", target,
					"error", err,
				)
			}

			if bp.onComplete != nil {
				bp.onComplete(run, i)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return runs, ctx.Err()
}
