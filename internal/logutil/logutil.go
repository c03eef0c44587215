// Package logutil configures the process logger and offers map-based helpers
// for call sites that assemble fields dynamically.
package logutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options control logger construction.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a slog logger. Format is "json" (default) or "text"; Level is
// debug, info, warn or error, defaulting to info.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level.
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

// Info logs a structured info message.
func Info(logger *slog.Logger, msg string, fields map[string]interface{}) {
	logger.Info(msg, attrs(fields)...)
}

// Warn logs a structured warning.
func Warn(logger *slog.Logger, msg string, fields map[string]interface{}) {
	logger.Warn(msg, attrs(fields)...)
}

// Error logs a structured error message including the error string.
func Error(logger *slog.Logger, msg string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logger.Error(msg, attrs(fields)...)
}

func attrs(fields map[string]interface{}) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
