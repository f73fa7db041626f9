package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of documents processed at once.
const DefaultConcurrency = 8

// BatchProcessor runs a pipeline over many documents concurrently.
type BatchProcessor struct {
	// factory creates the pipeline for each document, so steps never share
	// per-document state.
	factory func() *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of documents processed at once.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(factory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs the pipeline on every document. Per-document failures
// are left in Document.Err and do not stop the others. The returned error
// is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, docs []*Document) error {
	return bp.ProcessBatchWithCallback(ctx, docs, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked as each
// document finishes. The callback runs on the worker goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, docs []*Document, callback func(doc *Document, index int)) error {
	bp.logger.Debug("starting batch",
		"documents", len(docs),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				doc.Err = err
				return err
			}

			// Errors are recorded on the document.
			_ = bp.factory().Execute(ctx, doc) //nolint:errcheck

			if callback != nil {
				callback(doc, i)
			}
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"documents", len(docs),
		"failed", countFailed(docs),
		"elapsed", time.Since(start),
	)
	return err
}

func countFailed(docs []*Document) int {
	n := 0
	for _, d := range docs {
		if d.Err != nil {
			n++
		}
	}
	return n
}
