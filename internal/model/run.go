package model

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunClosed is returned by CrawlRun.Emit after Finish has been called.
var ErrRunClosed = errors.New("crawl run already finished")

// Crawl modes.
const (
	ModeHTTP    = "http"
	ModeBrowser = "browser"
)

// RecordSink receives finished page records.
// Implementations must be safe for concurrent use.
type RecordSink interface {
	Emit(ctx context.Context, record *PageRecord) error
}

// CrawlRun is the context object for crawling one seed.
//
// It replaces process-wide counters and output handles: every component
// working on a seed receives the run explicitly, updates its Stats and emits
// records through it. Finish releases the sink so late writers cannot leak
// records into another run.
type CrawlRun struct {
	// Seed is the crawl target.
	Seed Seed

	// Mode is ModeHTTP or ModeBrowser.
	Mode string

	// Stats collects the run's counters.
	Stats *Stats

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Err is the error that aborted the run, if any.
	Err error

	// ErrorMessage is Err as a string for serialization.
	ErrorMessage string

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string

	mu     sync.Mutex
	sink   RecordSink
	closed bool
}

// NewCrawlRun creates a run for seed that emits into sink.
// A nil sink discards records but still counts them.
func NewCrawlRun(seed Seed, sink RecordSink) *CrawlRun {
	return &CrawlRun{
		Seed:      seed,
		Mode:      ModeHTTP,
		Stats:     &Stats{},
		StartedAt: time.Now(),
		sink:      sink,
	}
}

// Emit hands record to the run's sink.
func (r *CrawlRun) Emit(ctx context.Context, record *PageRecord) error {
	r.mu.Lock()
	closed, sink := r.closed, r.sink
	r.mu.Unlock()

	if closed {
		return ErrRunClosed
	}
	if sink != nil {
		if err := sink.Emit(ctx, record); err != nil {
			return err
		}
	}
	r.Stats.PagesEmitted.Add(1)
	return nil
}

// Fail records err as the reason the run stopped.
func (r *CrawlRun) Fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
	r.ErrorMessage = err.Error()
}

// Finish marks the run complete and detaches the sink.
// Calling Finish more than once is harmless.
func (r *CrawlRun) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.sink = nil
	r.FinishedAt = time.Now()
}

// Elapsed returns the run duration, or the time since start while running.
func (r *CrawlRun) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Diagnostics returns the run's counters together with its identity and timing.
func (r *CrawlRun) Diagnostics() Diagnostics {
	d := r.Stats.Snapshot()
	d.EntityID = r.Seed.EntityID
	d.Domain = r.Seed.Domain
	d.SeedURL = r.Seed.URL
	d.Mode = r.Mode
	d.StartedAt = r.StartedAt
	d.Elapsed = r.Elapsed()

	r.mu.Lock()
	d.Error = r.ErrorMessage
	r.mu.Unlock()
	return d
}
