package seed

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSeedRow is returned for rows with a missing or invalid id or URL.
	ErrMalformedSeedRow = errors.New("malformed seed row")

	// ErrDuplicateDomain is returned for rows whose registrable domain was
	// already claimed by an earlier row.
	ErrDuplicateDomain = errors.New("duplicate seed domain")
)

// RowError reports a skipped row.
type RowError struct {
	// Line is the 1-based line number in the input.
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error {
	return e.Err
}
