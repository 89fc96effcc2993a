package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize is the largest page body read into memory.
	// Longer bodies are truncated.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultRetries is the number of extra attempts after a retryable failure.
	DefaultRetries = 5

	// DefaultBackoff is the base wait between attempts. Attempt n waits n*backoff.
	DefaultBackoff = time.Second

	// DefaultUserAgent identifies the crawler when no other agent is configured.
	DefaultUserAgent = "domaincrawl"

	maxRedirects = 10
)

// retryStatus lists the status codes worth another attempt.
var retryStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	522:                            true,
	524:                            true,
}

// Response is a fully read HTTP response.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after following redirects.
	FinalURL string

	StatusCode int
	Header     http.Header
	Body       []byte
}

// Redirected reports whether the server redirected the request.
func (r *Response) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.URL
}

// MediaType returns the lowercase media type of the Content-Type header,
// or "" when the header is missing or unparsable.
func (r *Response) MediaType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// IsHTML reports whether the response carries an HTML document.
// Responses without a Content-Type are sniffed.
func (r *Response) IsHTML() bool {
	mt := r.MediaType()
	if mt == "" {
		mt, _, _ = strings.Cut(http.DetectContentType(r.Body), ";")
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// Client fetches URLs with throttling and retries.
type Client struct {
	httpClient   *http.Client
	throttle     *Throttle
	logger       *slog.Logger
	userAgent    string
	proxyAddress string
	cookie       string
	headers      map[string]string
	timeout      time.Duration
	maxBodySize  int64
	strictSize   bool
	retries      int
	backoff      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBodySize caps how many body bytes are read.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) { c.maxBodySize = n }
}

// WithRejectOversize makes Fetch fail with ErrTooLarge instead of
// truncating a body longer than the maximum body size.
func WithRejectOversize() Option {
	return func(c *Client) { c.strictSize = true }
}

// WithRetries sets the number of extra attempts and the base backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithThrottle shares a per-domain throttle with the client.
func WithThrottle(t *Throttle) Option {
	return func(c *Client) { c.throttle = t }
}

// WithProxy routes every connection through the SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(c *Client) { c.proxyAddress = address }
}

// WithCookie adds a raw cookie string to every request.
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = headers }
}

// WithLogger sets the logger used for retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a Client. The proxy address is validated here but the
// proxy is not contacted; call CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		logger:      slog.Default(),
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		retries:     DefaultRetries,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	var rt http.RoundTripper = transport
	if c.cookie != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{base: transport, cookie: c.cookie, headers: c.headers}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	c.httpClient = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: checkRedirect,
	}
	return c, nil
}

// Fetch downloads rawURL. Transient failures are retried; the throttle slot
// for the URL's domain is held for the whole call.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	release, err := c.throttle.Acquire(ctx, rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer release()

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.retries || !retryable(ctx, err) {
			return nil, err
		}

		wait := c.backoff * time.Duration(attempt+1)
		c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt+1, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &Error{URL: rawURL, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrHTTPStatus}
	}

	if c.strictSize && resp.ContentLength > c.maxBodySize {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)}
	}

	limit := c.maxBodySize
	if c.strictSize {
		limit++
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	if c.strictSize && int64(len(body)) > c.maxBodySize {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w: over %d bytes", ErrTooLarge, c.maxBodySize)}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// RedirectCheck decides whether a redirect to target may be followed.
// A non-nil error stops the request before the target is fetched.
type RedirectCheck func(target string) error

type redirectCheckKey struct{}

// WithRedirectCheck returns a context that makes Fetch consult check before
// following each redirect. Errors from check are wrapped in *Error and are
// never retried.
func WithRedirectCheck(ctx context.Context, check RedirectCheck) context.Context {
	return context.WithValue(ctx, redirectCheckKey{}, check)
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return http.ErrUseLastResponse
	}
	check, ok := req.Context().Value(redirectCheckKey{}).(RedirectCheck)
	if !ok || check == nil {
		return nil
	}
	if err := check(req.URL.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrRedirectRefused, err)
	}
	return nil
}

// retryable reports whether another attempt could succeed.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	if fe.StatusCode != 0 {
		return retryStatus[fe.StatusCode]
	}
	if errors.Is(fe.Err, ErrRedirectRefused) || errors.Is(fe.Err, ErrTooLarge) {
		return false
	}
	return !errors.Is(fe.Err, context.Canceled)
}

func dialContext(dialer proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
}

// headerInjectingTransport adds the configured cookie and headers to every
// request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
