// Package logging configures the process-wide slog logger: a console
// handler on stderr plus an optional file handler, each with its own
// level. Components receive the logger by value through their config
// structs; nothing in this package is a hidden global.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables consulted by FromEnv.
const (
	EnvConsoleLevel = "PULSEBAR_LOG"
	EnvFileLevel    = "PULSEBAR_FILELOG"
	EnvFilePath     = "PULSEBAR_LOG_FILE"
)

// Options controls logger construction.
type Options struct {
	ConsoleLevel slog.Level
	FileLevel    slog.Level
	FilePath     string // empty disables the file sink
}

// FromEnv reads levels and the file path from the environment. Unset or
// unparseable levels fall back to info (console) and warn (file). The
// file level is capped at the console level: the file sink never logs
// more verbosely than the console sink.
func FromEnv() Options {
	opts := Options{
		ConsoleLevel: parseLevel(os.Getenv(EnvConsoleLevel), slog.LevelInfo),
		FileLevel:    parseLevel(os.Getenv(EnvFileLevel), slog.LevelWarn),
		FilePath:     os.Getenv(EnvFilePath),
	}
	if opts.FileLevel < opts.ConsoleLevel {
		opts.FileLevel = opts.ConsoleLevel
	}
	return opts
}

// Setup builds the logger. The returned close function flushes and closes
// the file sink (a no-op when no file is configured).
func Setup(opts Options) (*slog.Logger, func() error, error) {
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: opts.ConsoleLevel,
	})

	if opts.FilePath == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	fileLevel := opts.FileLevel
	if fileLevel < opts.ConsoleLevel {
		fileLevel = opts.ConsoleLevel
	}
	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: fileLevel})

	logger := slog.New(fanout{console, file})
	return logger, f.Close, nil
}

// parseLevel maps a level name to a slog.Level, returning def for
// anything it does not recognize.
func parseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	case "":
		return def
	default:
		return def
	}
}

// fanout forwards records to every child handler that accepts the
// record's level. The standard library ships no multi-sink handler, so
// this is the minimal glue over two TextHandlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

// Discard returns a logger that drops everything. Tests and optional
// components use it instead of carrying nil checks.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// discardHandler matches slog.DiscardHandler, which is unavailable
// before Go 1.24: it discards all output and reports every level
// disabled.
type discardHandler struct{}

func (dh discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (dh discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (dh discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler  { return dh }
func (dh discardHandler) WithGroup(name string) slog.Handler        { return dh }
