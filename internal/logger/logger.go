// Package logger provides structured logging for the service.  It wraps
// log/slog and is configured once at startup from config.LogConfig.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ActorIDKey is the context key for the acting user
	ActorIDKey contextKey = "actor_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  Development environments get
// human readable text, everything else JSON.  debug lowers the level.
func New(env string, debug bool) *Logger {
	return NewWithWriter(os.Stdout, env, debug)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, env string, debug bool) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if strings.EqualFold(env, "development") || strings.EqualFold(env, "dev") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.  Tests use it.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger carrying request_id and actor_id when the
// context has them.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		out = &Logger{Logger: out.With(slog.String("request_id", id))}
	}
	if id, ok := ctx.Value(ActorIDKey).(string); ok && id != "" {
		out = &Logger{Logger: out.With(slog.String("actor_id", id))}
	}
	return out
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// HTTPError logs a request that ended in a server error.
func (l *Logger) HTTPError(method, path string, status int, err error) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}
