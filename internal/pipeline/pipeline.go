package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each one reading what earlier steps
// stored on the page and adding its own results.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state (fetcher, sink, specs)
// 2. It provides a Name() method for logging and debugging
// 3. Tests can replace any single step with a stub
type Step interface {
	// Do executes the step. A returned error stops the pipeline.
	Do(ctx context.Context, page *model.Page) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs the unit of work for one crawl target.
// It is safe for concurrent use as long as its steps are.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddSteps after creation.
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

// AddSteps appends steps to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps on page in order and returns the first error.
//
// Design decision: We check ctx before each step rather than during, because
// steps handle their own timeouts. A unit cancelled between fetch and sink
// returns the context error, and the scheduler puts the target back into
// pending.
func (p *Pipeline) Execute(ctx context.Context, page *model.Page) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline cancelled",
				"step", step.Name(),
				"target", page.Target,
				"reason", err,
			)
			return err
		}

		if err := step.Do(ctx, page); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"target", page.Target,
				"error", err,
			)
			return err
		}
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
