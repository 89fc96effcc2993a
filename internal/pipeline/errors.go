package pipeline

import "errors"

var (
	// ErrUnknownMode is returned by ModeStep for a run whose mode has no step.
	ErrUnknownMode = errors.New("unknown crawl mode")

	// ErrSeedPanic wraps a panic recovered while crawling a seed.
	ErrSeedPanic = errors.New("seed crawl panicked")
)
