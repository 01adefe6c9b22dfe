package vdisk

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with volume specific helpers so every operation
// logs with the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler at Info level writing to stderr is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPath adds the backing path to every record.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// WithDir adds a directory head field.
func (l *Logger) WithDir(dir int32) *Logger {
	return &Logger{Logger: l.Logger.With("dir", dir)}
}

// LogOp logs the outcome of a volume operation: Error on failure, Debug on
// success.
func (l *Logger) LogOp(ctx context.Context, op string, dir int32, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"dir", dir,
			"name", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, op+" completed",
		"dir", dir,
		"name", name,
	)
}

// LogFormat logs creation of a fresh volume.
func (l *Logger) LogFormat(ctx context.Context, clusterSize, clusterCount int, label string) {
	l.InfoContext(ctx, "volume formatted",
		"cluster_size", clusterSize,
		"cluster_count", clusterCount,
		"label", label,
	)
}

// LogLoad logs loading an existing volume.
func (l *Logger) LogLoad(ctx context.Context, free int, legacy bool) {
	if legacy {
		l.WarnContext(ctx, "volume loaded without superblock",
			"free_clusters", free,
		)
		return
	}
	l.InfoContext(ctx, "volume loaded",
		"free_clusters", free,
	)
}

// LogSave logs persisting the allocation table.
func (l *Logger) LogSave(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "error", err)
		return
	}
	l.DebugContext(ctx, "allocation table saved")
}

// LogCheck logs a consistency check result.
func (l *Logger) LogCheck(ctx context.Context, lost, crossLinked, corrupt int) {
	if lost+crossLinked+corrupt > 0 {
		l.WarnContext(ctx, "check found problems",
			"lost", lost,
			"cross_linked", crossLinked,
			"corrupt", corrupt,
		)
		return
	}
	l.InfoContext(ctx, "check clean")
}
