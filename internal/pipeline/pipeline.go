package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/domaincrawl/internal/model"
)

// Step is one stage of a seed's crawl.
type Step interface {
	// Do runs the step. A returned error aborts the seed; per-page
	// failures belong in run.Stats.
	Do(ctx context.Context, run *model.CrawlRun) error

	// Name returns the step's name for logging and run.PerformedSteps.
	Name() string
}

// Pipeline executes the steps of one seed in order.
// It stops at the first failing step and records the failure on the run,
// so a run's PerformedSteps always lists a prefix of the steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
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

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps against run. Cancellation is checked between
// steps; each step handles it internally as well. The first step error is
// recorded on run and returned.
func (p *Pipeline) Execute(ctx context.Context, run *model.CrawlRun) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"entity", run.Seed.EntityID,
				"reason", err,
			)
			run.Fail(err)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"entity", run.Seed.EntityID,
			"mode", run.Mode,
		)

		if err := step.Do(ctx, run); err != nil {
			if ctx.Err() != nil {
				p.logger.Warn("step interrupted",
					"step", step.Name(),
					"entity", run.Seed.EntityID,
					"reason", ctx.Err(),
				)
				run.Fail(err)
				return err
			}
			p.logger.Error("step failed",
				"step", step.Name(),
				"entity", run.Seed.EntityID,
				"error", err,
			)
			run.Fail(err)
			return err
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return nil
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
