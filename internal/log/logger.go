package log

import (
	"io"
	"log/slog"
)

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the level to Debug. The default level is Info.
	Verbose bool

	// Quiet raises the level to Warn. Verbose wins when both are set.
	Quiet bool

	// JSON selects slog's JSON handler instead of the text handler.
	JSON bool
}

// NewLogger returns a logger writing to w through a SecureHandler.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(h))
}
