package browser

import "errors"

var (
	// ErrInteraction is returned when an element could not be clicked with
	// either strategy. The link is counted as unclicked and the session continues.
	ErrInteraction = errors.New("element interaction failed")

	// ErrSessionLost is returned when the browser went away. The seed is aborted.
	ErrSessionLost = errors.New("browser session lost")

	// ErrElementNotFound is returned when no anchor matches a fingerprint.
	ErrElementNotFound = errors.New("element not found")
)
