package coredata

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with dataset-specific helpers.
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
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataset adds the dataset location to the logger.
func (l *Logger) WithDataset(location string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", location),
	}
}

// WithRunID tags all records with a conversion or crawl run id.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// LogConvert logs the outcome of a conversion.
func (l *Logger) LogConvert(ctx context.Context, res ConvertResult, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "conversion failed",
			"records", res.Records,
			"shards", res.Shards,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "conversion completed",
		"records", res.Records,
		"dropped", res.Dropped,
		"rows", res.Rows,
		"shards", res.Shards,
		"skipped_files", len(res.SkippedFiles),
		"duration", duration,
	)
}

// LogShardFlush logs a written shard.
func (l *Logger) LogShardFlush(ctx context.Context, id, lines int, bytes int64) {
	l.DebugContext(ctx, "shard written",
		"shard", id,
		"lines", lines,
		"bytes", bytes,
	)
}

// LogOpen logs the outcome of opening a dataset.
func (l *Logger) LogOpen(ctx context.Context, rows, shards int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dataset opened",
		"rows", rows,
		"shards", shards,
		"duration", duration,
	)
}

// LogSkip logs an input that was skipped instead of failing the operation.
// key identifies the input: a file name or a logical record index.
func (l *Logger) LogSkip(ctx context.Context, what string, key any, err error) {
	l.WarnContext(ctx, "skipped "+what,
		"key", key,
		"error", err,
	)
}
