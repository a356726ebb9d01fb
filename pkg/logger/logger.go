// Package logger provides the structured logging surface the rest of the
// service depends on. Production output is JSON on stdout via log/slog;
// tests inject NopLogger.
package logger

import (
	"log/slog"
	"os"
)

// Logger is the logging contract passed through constructors.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	With(args ...any) Logger
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds a JSON logger at the given level. Unknown levels fall back
// to info.
func New(level string) Logger {
	lvl, ok := levels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &slogAdapter{sl: slog.New(h)}
}

type slogAdapter struct {
	sl *slog.Logger
}

func (l *slogAdapter) Info(msg string, args ...any)  { l.sl.Info(msg, args...) }
func (l *slogAdapter) Error(msg string, args ...any) { l.sl.Error(msg, args...) }
func (l *slogAdapter) Warn(msg string, args ...any)  { l.sl.Warn(msg, args...) }
func (l *slogAdapter) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }

func (l *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{sl: l.sl.With(args...)}
}

// NopLogger discards all log output. Used in tests.
type NopLogger struct{}

func (NopLogger) Info(msg string, args ...any)  {}
func (NopLogger) Error(msg string, args ...any) {}
func (NopLogger) Warn(msg string, args ...any)  {}
func (NopLogger) Debug(msg string, args ...any) {}
func (n NopLogger) With(args ...any) Logger     { return n }
