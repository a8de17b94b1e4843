package gbcore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with gbcore-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithMatrix tags log records with a matrix id.
func (l *Logger) WithMatrix(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("matrix", id),
	}
}

// LogFinalize logs a finalize pass.
func (l *Logger) LogFinalize(ctx context.Context, id uint64, pending, zombies, nvals int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "finalize failed",
			"matrix", id,
			"pending", pending,
			"zombies", zombies,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "finalize completed",
		"matrix", id,
		"pending", pending,
		"zombies", zombies,
		"nvals", nvals,
		"duration", d,
	)
}

// LogFinalizeAll logs a sweep over the outstanding-work queue.
func (l *Logger) LogFinalizeAll(ctx context.Context, count, failed int, d time.Duration) {
	if failed > 0 {
		l.WarnContext(ctx, "finalize sweep completed with failures",
			"total", count,
			"failed", failed,
			"duration", d,
		)
		return
	}
	l.DebugContext(ctx, "finalize sweep completed",
		"count", count,
		"duration", d,
	)
}

// LogRetry logs a finalize retried after running out of memory.
func (l *Logger) LogRetry(ctx context.Context, id uint64, attempt int, err error) {
	l.WarnContext(ctx, "finalize out of memory, retrying",
		"matrix", id,
		"attempt", attempt,
		"error", err,
	)
}
