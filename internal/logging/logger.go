// Package logging provides structured logging for sketchbooth and the line
// filters used when re-logging captured child output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// NewLogger builds the process logger writing to stderr. Format is "json" or
// "text"; verbose forces debug level regardless of the configured one.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	lv := parseLevel(level)
	if verbose {
		lv = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stderr, format, lv))
}

// NewLoggerWithWriter builds a logger on a custom writer. Tests and child
// processes (which log to stdout for the parent to capture) use this.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	return slog.New(newHandler(w, format, parseLevel(level)))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations only matter when someone is actually debugging.
		AddSource: level == slog.LevelDebug,
	}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ForSubsystem returns a child logger tagged with the subsystem name.
// Every spawned subsystem and its captured output logs through one of these.
func ForSubsystem(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("subsystem", name)
}

func parseLevel(level string) slog.Level {
	if lv, ok := levelNames[strings.ToLower(level)]; ok {
		return lv
	}
	return slog.LevelInfo
}

// SetDefault installs the logger as the slog package default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
