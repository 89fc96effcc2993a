package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetries(0, time.Millisecond)}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	return c
}

func TestClientFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends user agent", func(t *testing.T) {
		t.Parallel()

		gotUA := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA <- r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer server.Close()

		c := newTestClient(t, WithUserAgent("test-agent/1.0"))
		resp, err := c.Fetch(context.Background(), server.URL+"/")
		require.NoError(t, err)

		assert.Equal(t, "test-agent/1.0", <-gotUA)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(resp.Body), "hello")
		assert.True(t, resp.IsHTML())
		assert.False(t, resp.Redirected())
	})

	t.Run("HTTP error matches ErrFetch", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		c := newTestClient(t)
		_, err := c.Fetch(context.Background(), server.URL+"/missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
		assert.ErrorIs(t, err, ErrHTTPStatus)

		var fe *Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	})

	t.Run("connection failure matches ErrFetch", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		c := newTestClient(t, WithTimeout(2*time.Second))
		_, err = c.Fetch(context.Background(), "http://"+addr+"/")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("follows redirects and reports final URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("moved"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c := newTestClient(t)
		resp, err := c.Fetch(context.Background(), server.URL+"/old")
		require.NoError(t, err)
		assert.True(t, resp.Redirected())
		assert.Equal(t, server.URL+"/new", resp.FinalURL)
	})

	t.Run("truncates body at the size cap", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		}))
		defer server.Close()

		c := newTestClient(t, WithMaxBodySize(100))
		resp, err := c.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Len(t, resp.Body, 100)
	})

	t.Run("rejects oversize bodies when asked", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/sized", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		})
		mux.HandleFunc("/chunked", func(w http.ResponseWriter, _ *http.Request) {
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte(strings.Repeat("a", 101)))
		})
		mux.HandleFunc("/exact", func(w http.ResponseWriter, _ *http.Request) {
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c := newTestClient(t, WithMaxBodySize(100), WithRejectOversize())

		for _, path := range []string{"/sized", "/chunked"} {
			_, err := c.Fetch(context.Background(), server.URL+path)
			assert.ErrorIs(t, err, ErrTooLarge, path)
			assert.ErrorIs(t, err, ErrFetch, path)
		}

		resp, err := c.Fetch(context.Background(), server.URL+"/exact")
		require.NoError(t, err)
		assert.Len(t, resp.Body, 100)
	})

	t.Run("redirect check stops the request before the target", func(t *testing.T) {
		t.Parallel()

		var targetHits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusFound)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			targetHits.Add(1)
			_, _ = w.Write([]byte("moved"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		errTaken := errors.New("taken")
		var seen []string
		ctx := WithRedirectCheck(context.Background(), func(target string) error {
			seen = append(seen, target)
			return errTaken
		})

		c := newTestClient(t, WithRetries(3, time.Millisecond))
		_, err := c.Fetch(ctx, server.URL+"/old")
		assert.ErrorIs(t, err, ErrRedirectRefused)
		assert.ErrorIs(t, err, errTaken)
		assert.Equal(t, []string{server.URL + "/new"}, seen, "refused redirects are not retried")
		assert.Equal(t, int32(0), targetHits.Load())

		resp, err := c.Fetch(WithRedirectCheck(context.Background(), func(string) error { return nil }), server.URL+"/old")
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/new", resp.FinalURL)
		assert.Equal(t, int32(1), targetHits.Load())
	})

	t.Run("injects cookie and headers", func(t *testing.T) {
		t.Parallel()

		got := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got <- r.Header.Clone()
		}))
		defer server.Close()

		c := newTestClient(t, WithCookie("session=abc"), WithHeaders(map[string]string{"X-Token": "secret"}))
		_, err := c.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		h := <-got
		assert.Equal(t, "session=abc", h.Get("Cookie"))
		assert.Equal(t, "secret", h.Get("X-Token"))
	})
}

func TestClientRetries(t *testing.T) {
	t.Parallel()

	t.Run("retries transient status until success", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		c := newTestClient(t, WithRetries(5, time.Millisecond))
		resp, err := c.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(resp.Body))
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("does not retry 404", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := newTestClient(t, WithRetries(5, time.Millisecond))
		_, err := c.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := newTestClient(t, WithRetries(2, time.Millisecond))
		_, err := c.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		c := newTestClient(t, WithRetries(10, time.Second))
		_, err := c.Fetch(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestThrottle(t *testing.T) {
	t.Parallel()

	t.Run("limits concurrent requests per domain", func(t *testing.T) {
		t.Parallel()

		var inFlight, peak atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
		}))
		defer server.Close()

		c := newTestClient(t, WithThrottle(NewThrottle(2, 0)))

		var wg sync.WaitGroup
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.Fetch(context.Background(), server.URL) //nolint:errcheck
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("spaces out requests", func(t *testing.T) {
		t.Parallel()

		th := NewThrottle(4, 30*time.Millisecond)
		start := time.Now()
		for range 3 {
			release, err := th.Acquire(context.Background(), "https://www.example.org/")
			require.NoError(t, err)
			release()
		}
		assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	})

	t.Run("nil throttle is a no-op", func(t *testing.T) {
		t.Parallel()

		var th *Throttle
		release, err := th.Acquire(context.Background(), "https://example.org/")
		require.NoError(t, err)
		release()
	})

	t.Run("acquire honors cancellation", func(t *testing.T) {
		t.Parallel()

		th := NewThrottle(1, 0)
		release, err := th.Acquire(context.Background(), "https://example.org/a")
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = th.Acquire(ctx, "https://www.example.org/b")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProxy(t *testing.T) {
	t.Parallel()

	t.Run("invalid proxy address is rejected", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"127.0.0.1", ":9050", "127.0.0.1:", "host:0", "host:70000", "host:abc"} {
			_, err := NewClient(WithProxy(addr))
			assert.ErrorIs(t, err, ErrInvalidProxyAddress, addr)
		}
	})

	t.Run("valid proxy address builds a client", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(WithProxy("127.0.0.1:9050"))
		assert.NoError(t, err)
	})

	t.Run("accepts SOCKS5 greeting", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, []byte{socks5Version, socks5AuthNone})
		assert.NoError(t, CheckProxy(context.Background(), addr))
	})

	t.Run("rejects non SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, []byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		assert.ErrorIs(t, CheckProxy(context.Background(), addr), ErrProxyNotSOCKS5)
	})

	t.Run("reports unreachable proxy", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		assert.ErrorIs(t, CheckProxy(context.Background(), addr), ErrProxyCannotConnect)
	})
}

// serveOnce accepts one connection, reads the greeting and writes reply.
func serveOnce(t *testing.T, reply []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(reply)
	}()
	return ln.Addr().String()
}
