// Package log provides a structured logging interface for explainer training
// and inference.
//
// The package defines a minimal, slog-compatible logging interface so the
// backend can be swapped without touching call sites, plus standard attribute
// keys for the quantities this library logs (epochs, folds, losses, data
// shapes). The default implementation is built on Go's log/slog with a JSON
// handler and a wrapper that surfaces cockroachdb/errors stack traces.
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The fields arguments are alternating key-value pairs, as in slog. With
// returns a derived logger with the given fields pre-populated on every
// subsequent record.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If one of the fields is an error value under ErrAttrKey, the handler
	// attaches its stack trace as a separate attribute.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip expensive attribute construction.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, value-compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
