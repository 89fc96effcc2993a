// Package fetch is the HTTP layer shared by page crawling and document
// extraction.
//
// A Client wraps net/http with the behavior a polite crawler needs:
//   - a per-domain Throttle that caps concurrent requests
//     (golang.org/x/sync/semaphore) and spaces them out
//     (golang.org/x/time/rate)
//   - retries with linear backoff on network errors and transient status codes
//   - a response body size cap
//   - optional SOCKS5 proxying through golang.org/x/net/proxy
//   - per-site cookies and headers injected by a RoundTripper
//
// Transport and HTTP failures are returned as *Error, which matches ErrFetch
// with errors.Is. Callers never need to inspect net/http errors directly.
//
// # Usage
//
//	throttle := fetch.NewThrottle(8, 5*time.Second)
//	client, err := fetch.NewClient(fetch.WithThrottle(throttle))
//	resp, err := client.Fetch(ctx, "https://www.example.org/")
package fetch
