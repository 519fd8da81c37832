package castore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with castore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithOid adds an object ID field to the logger.
func (l *Logger) WithOid(oid Oid) *Logger {
	return &Logger{
		Logger: l.Logger.With("oid", oid.String()),
	}
}

// WithBackend adds a backend name field to the logger.
func (l *Logger) WithBackend(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("backend", name),
	}
}

// LogPut logs an object put operation.
func (l *Logger) LogPut(ctx context.Context, oid Oid, size int, deduped bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "object put failed",
			"oid", oid.String(),
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "object put completed",
			"oid", oid.String(),
			"size", size,
			"deduped", deduped,
		)
	}
}

// LogBatchPut logs a batch put operation.
func (l *Logger) LogBatchPut(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch put completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch put completed",
			"count", count,
		)
	}
}

// LogGet logs an object get operation.
func (l *Logger) LogGet(ctx context.Context, oid Oid, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "object get failed",
			"oid", oid.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "object get completed",
			"oid", oid.String(),
			"size", size,
		)
	}
}
