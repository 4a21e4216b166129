package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/crawlmd/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the run filled in by
// the steps before it.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and the run's step list
type Step interface {
	// Do executes the pipeline step.
	// Failures of individual URLs belong in the run's log; an error
	// return means the step itself could not complete.
	Do(ctx context.Context, run *model.CrawlRun) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Regular steps stop when the context is cancelled. Final steps always
// run afterwards with a context that ignores cancellation, so an
// interrupted crawl still gets its report and summary.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps, even when the context was cancelled.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
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

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The error is recorded on the run and the
// remaining steps still execute.
//
// Design decision: The default is to stop on error because an early
// failure (e.g., no browser for the rendered backend) usually means
// later steps have nothing to work with.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalSteps: make([]Step, 0),
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

// AddFinalSteps appends steps that run after all regular steps,
// whether or not the context was cancelled.
func (p *Pipeline) AddFinalSteps(steps ...Step) {
	p.finalSteps = append(p.finalSteps, steps...)
}

// Execute runs all regular steps in sequence, then all final steps.
//
// It returns the first error encountered when continueOnError is false.
// With continueOnError, step errors are only recorded on the run and
// the context error, if any, is returned.
func (p *Pipeline) Execute(ctx context.Context, run *model.CrawlRun) error {
	err := p.executeSteps(ctx, run)

	final := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if stepErr := p.executeStep(final, step, run); stepErr != nil && err == nil && !p.continueOnError {
			err = stepErr
		}
	}

	return err
}

// executeSteps runs the regular steps, checking for cancellation before each.
func (p *Pipeline) executeSteps(ctx context.Context, run *model.CrawlRun) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			if run.Error == nil {
				run.SetError(err)
			}
			return err
		}

		if err := p.executeStep(ctx, step, run); err != nil && !p.continueOnError {
			return err
		}
	}

	return ctx.Err()
}

// executeStep runs one step and records its outcome on the run.
func (p *Pipeline) executeStep(ctx context.Context, step Step, run *model.CrawlRun) error {
	p.logger.Debug("executing step",
		"step", step.Name(),
		"target", run.Target,
	)

	err := step.Do(ctx, run)
	run.PerformedSteps = append(run.PerformedSteps, step.Name())

	if err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"target", run.Target,
			"error", err,
		)
		if run.Error == nil {
			run.SetError(err)
		}
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"target", run.Target,
	)
	return nil
}

// StepCount returns the number of steps in the pipeline, final steps included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
