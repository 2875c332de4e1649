// Package logger provides structured logging using slog with request context support.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// EventIDKey is the context key for the webhook event being processed.
	EventIDKey contextKey = "event_id"
)

// Logger wraps slog.Logger with additional context-aware methods.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger writing to stdout with the specified level and format.
func New(level slog.Level, json bool) *Logger {
	return NewWithWriter(os.Stdout, level, json)
}

// NewWithWriter creates a Logger that writes to w.
func NewWithWriter(w io.Writer, level slog.Level, json bool) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// FromConfig builds a logger from the LOG_LEVEL / LOG_FORMAT settings.
func FromConfig(level, format string) *Logger {
	return New(ParseLevel(level), !strings.EqualFold(format, "text"))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Default creates a logger with default settings (INFO level, JSON format).
func Default() *Logger {
	return New(slog.LevelInfo, true)
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Wrap returns l as a Logger, or the default logger when l is nil.
func Wrap(l *slog.Logger) *Logger {
	if l == nil {
		return &Logger{Logger: slog.Default()}
	}
	return &Logger{Logger: l}
}

// WithContext returns a new Logger with fields extracted from the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if eventID := EventIDFromContext(ctx); eventID != "" {
		logger = logger.With("event_id", eventID)
	}

	return &Logger{Logger: logger}
}

// WithComponent returns a new Logger with the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// WithError returns a new Logger with the error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With("error", err.Error())}
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithEventID adds a webhook event ID to the context.
func ContextWithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// EventIDFromContext extracts the event ID from context.
func EventIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(EventIDKey).(string); ok {
		return id
	}
	return ""
}
