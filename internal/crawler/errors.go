package crawler

import "errors"

var (
	// ErrOutOfScope is attached to links whose registrable domain differs
	// from the crawl's allowed domain.
	ErrOutOfScope = errors.New("link is outside the allowed domain")

	// ErrInvalidSeed is returned when a run's seed URL cannot be crawled.
	ErrInvalidSeed = errors.New("invalid seed URL")
)
