package domain

import "errors"

// ErrMalformedURL is returned when a URL has no parseable host.
// Callers drop the offending link or seed row and continue.
var ErrMalformedURL = errors.New("malformed URL")
