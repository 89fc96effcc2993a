package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Resolve returns the registrable domain of rawURL.
//
// The result depends only on the host: scheme, port, path, query and
// fragment are ignored. A URL without a scheme is read as http. IP literals
// and single-label hosts (localhost, intranet names) have no public suffix
// and are returned unchanged.
func Resolve(rawURL string) (string, error) {
	host, err := Host(rawURL)
	if err != nil {
		return "", err
	}

	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMalformedURL, rawURL, err)
	}
	return registrable, nil
}

// Host returns the lowercased host of rawURL without port or brackets.
func Host(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("%w: empty URL", ErrMalformedURL)
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrMalformedURL, rawURL)
	}
	return host, nil
}

