// Package logger wraps log/slog with the process-wide defaults used by the
// regassist binaries.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(os.Getenv("ENVIRONMENT"), false, nil))
}

// New builds a logger for the given environment. Production gets JSON on
// stdout at INFO; everything else gets text on stderr at DEBUG when debug is
// set, INFO otherwise. A nil writer selects the default stream.
func New(environment string, debug bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if environment == "production" {
		if w == nil {
			w = os.Stdout
		}
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup replaces the default logger and the slog package default.
func Setup(environment string, debug bool) *slog.Logger {
	l := New(environment, debug, nil)
	SetDefault(l)
	return l
}

// SetDefault installs l as the default logger.
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// Default returns the default logger instance.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// With creates a logger with additional fields.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// FromContext returns the request-scoped logger, or the default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return Default()
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return Default()
}

// WithContext stores a logger in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

type loggerKey struct{}

func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// ErrorErr logs msg at ERROR with err attached.
func ErrorErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	Default().Error(msg, args...)
}
