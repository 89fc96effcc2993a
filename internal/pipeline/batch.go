package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/domaincrawl/internal/model"
)

// DefaultConcurrency is the number of seeds crawled at once.
const DefaultConcurrency = 4

// BatchProcessor crawls many seeds concurrently.
// Each seed gets a fresh Pipeline from the factory and its own CrawlRun.
type BatchProcessor struct {
	pipelineFactory func(seed model.Seed) *Pipeline
	sink            model.RecordSink
	modeFor         func(seed model.Seed) string
	recorder        RunRecorder
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many seeds run at once. Non-positive n is ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithSink sets the sink every run emits into.
func WithSink(sink model.RecordSink) BatchOption {
	return func(b *BatchProcessor) {
		b.sink = sink
	}
}

// WithModeSelector picks the crawl mode per seed. The default is model.ModeHTTP.
func WithModeSelector(modeFor func(seed model.Seed) string) BatchOption {
	return func(b *BatchProcessor) {
		b.modeFor = modeFor
	}
}

// WithRunRecorder saves every finished run's diagnostics.
func WithRunRecorder(r RunRecorder) BatchOption {
	return func(b *BatchProcessor) {
		b.recorder = r
	}
}

// NewBatchProcessor creates a BatchProcessor. pipelineFactory is called
// once per seed.
func NewBatchProcessor(pipelineFactory func(seed model.Seed) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.modeFor == nil {
		bp.modeFor = func(model.Seed) string { return model.ModeHTTP }
	}
	return bp
}

// ProcessBatch crawls seeds and returns their finished runs in input order.
// Seed failures are recorded on the runs; the returned error is ctx's.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []model.Seed) ([]*model.CrawlRun, error) {
	runs := make([]*model.CrawlRun, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(run *model.CrawlRun, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback crawls seeds and calls callback with each
// finished run and its index in seeds. The callback runs on the seed's
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []model.Seed,
	callback func(run *model.CrawlRun, index int),
) error {
	bp.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			run := bp.runSeed(ctx, seed, i, len(seeds))
			if callback != nil {
				callback(run, i)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // seed errors are recorded on their runs

	bp.logger.Info("batch complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

// runSeed crawls one seed. A panic is recovered and recorded on the run.
func (bp *BatchProcessor) runSeed(ctx context.Context, seed model.Seed, index, total int) (run *model.CrawlRun) {
	run = model.NewCrawlRun(seed, bp.sink)
	run.Mode = bp.modeFor(seed)

	defer func() {
		if r := recover(); r != nil {
			bp.logger.Error("seed crawl panicked",
				"entity", seed.EntityID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			run.Fail(fmt.Errorf("%w: %v", ErrSeedPanic, r))
		}
		run.Finish()
		bp.record(ctx, run)
	}()

	if err := ctx.Err(); err != nil {
		run.Fail(err)
		return run
	}

	bp.logger.Info("crawling seed",
		"entity", seed.EntityID,
		"url", seed.URL,
		"mode", run.Mode,
		"index", index+1,
		"total", total,
	)

	if err := bp.pipelineFactory(seed).Execute(ctx, run); err != nil {
		bp.logger.Warn("seed crawl failed",
			"entity", seed.EntityID,
			"error", err,
		)
		return run
	}

	bp.logger.Info("seed complete",
		"entity", seed.EntityID,
		"pages", run.Stats.PagesEmitted.Load(),
		"elapsed", run.Elapsed(),
	)
	return run
}

func (bp *BatchProcessor) record(ctx context.Context, run *model.CrawlRun) {
	if bp.recorder == nil {
		return
	}
	// Save even when the batch was interrupted.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := bp.recorder.SaveRun(saveCtx, run.Diagnostics()); err != nil {
		bp.logger.Warn("failed to save run diagnostics",
			"entity", run.Seed.EntityID,
			"error", err,
		)
	}
}
