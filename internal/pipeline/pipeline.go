package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of document processing.
type Step interface {
	// Do processes doc. A returned error stops the pipeline for this
	// document and is recorded in doc.Err.
	Do(ctx context.Context, doc *Document) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order on one document.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline running steps in the given order.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Execute runs the steps on doc. It stops at the first failing step, records
// the error in doc.Err and returns it. Cancellation is checked between steps.
func (p *Pipeline) Execute(ctx context.Context, doc *Document) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			doc.Err = err
			return err
		}

		if err := step.Do(ctx, doc); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"source", doc.Source,
				"error", err,
			)
			doc.Err = err
			return err
		}

		p.logger.Debug("step completed", "step", step.Name(), "source", doc.Source)
		doc.Steps = append(doc.Steps, step.Name())
	}
	return nil
}
