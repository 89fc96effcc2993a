// Package log builds the crawler's slog loggers.
//
// Every logger returned by this package wraps its handler in a
// SecureHandler, which masks values that must not end up in log files:
//   - site credentials from the per-site config (cookies, auth headers)
//   - passwords embedded in proxy or Redis URLs
//   - values that look like bearer tokens, JWTs or API keys
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	slog.SetDefault(logger)
package log
