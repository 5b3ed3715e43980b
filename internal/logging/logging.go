// Package logging configures structured logging for the monitor.
//
// The worker takes an injected *slog.Logger rather than a process-global
// singleton, keeping components testable in isolation. This package only
// builds the logger: level parsing, multi-destination output, and cleanup of
// closable destinations (log files).
package logging

import (
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Logger wraps slog.Logger and owns any closable log destinations.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// New builds a Logger writing text records to the given writers.
// Writers that implement io.Closer are closed by Close.
func New(level string, writers ...io.Writer) (*Logger, error) {
	if len(writers) == 0 {
		return nil, errors.New("at least one log writer is required")
	}

	output := writers[0]
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	}

	var closers []io.Closer
	for _, w := range writers {
		if c, ok := w.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler), closers: closers}, nil
}

// Close closes all closable destinations, returning the last error seen.
func (l *Logger) Close() error {
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
