package document

import (
	"errors"

	"github.com/nao1215/domaincrawl/internal/fetch"
)

var (
	// ErrFetch matches download failures. It is the same value as fetch.ErrFetch.
	ErrFetch = fetch.ErrFetch

	// ErrUnsupportedFormat is returned when no backend handles the document.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction is returned when a backend fails to produce text.
	ErrExtraction = errors.New("document text extraction failed")
)
