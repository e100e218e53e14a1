package succinct

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for structure
// builds and blob I/O. The core read paths never log; logging belongs to
// construction and persistence, where durations and sizes matter.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger emitting JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithStructure tags records with the structure kind being processed.
func (l *Logger) WithStructure(kind string) *Logger {
	return &Logger{Logger: l.Logger.With("structure", kind)}
}

// LogBuild records a completed or failed structure build.
func (l *Logger) LogBuild(ctx context.Context, kind string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"structure", kind,
			"entries", entries,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "build completed",
		"structure", kind,
		"entries", entries,
	)
}

// LogSave records a completed or failed persist of a structure.
func (l *Logger) LogSave(ctx context.Context, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"blob", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "save completed",
		"blob", name,
		"bytes", bytes,
	)
}

// LogLoad records a completed or failed load of a structure.
func (l *Logger) LogLoad(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"blob", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "load completed",
		"blob", name,
	)
}
