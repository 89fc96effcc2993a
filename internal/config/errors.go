package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeedFile is returned when no seed file was given.
	ErrNoSeedFile = errors.New("no seed file specified")

	// ErrInvalidMode is returned when the mode is neither http nor browser.
	ErrInvalidMode = errors.New("invalid mode: must be http or browser")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidConcurrency is returned when the per-domain concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidCrawlDepth is returned when the depth limit is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when a body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidReportFormat is returned for an unknown diagnostics format.
	ErrInvalidReportFormat = errors.New("invalid diagnostics format: must be text, markdown or json")

	// ErrInvalidDelimiter is returned when the seed delimiter is not a
	// single usable character.
	ErrInvalidDelimiter = errors.New("invalid delimiter: must be one character or \"tab\"")

	// ErrInvalidImageSize is returned when the minimum image size is negative.
	ErrInvalidImageSize = errors.New("invalid minimum image size: must be non-negative")

	// ErrSameSeedColumn is returned when the id and url columns coincide.
	ErrSameSeedColumn = errors.New("id and url columns must differ")
)
