package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every transport or HTTP failure returned by Client.Fetch.
	ErrFetch = errors.New("fetch failed")

	// ErrHTTPStatus is wrapped by *Error when the server answered with a
	// status code of 400 or above.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTooLarge is wrapped by *Error when a client built with
	// WithRejectOversize receives a body over its size limit.
	ErrTooLarge = errors.New("response body too large")

	// ErrRedirectRefused is wrapped by *Error when a RedirectCheck refused
	// to follow a redirect.
	ErrRedirectRefused = errors.New("redirect refused")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyNotSOCKS5 is returned when the proxy answered but did not
	// complete a SOCKS5 greeting without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")
)

// Error describes a failed request.
type Error struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrFetch.
func (e *Error) Is(target error) bool {
	return target == ErrFetch
}
