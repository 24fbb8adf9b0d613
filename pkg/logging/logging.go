// Package logging configures structured JSON logging for every function.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger writing to stdout, tagged with the stage.
func New(stage, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, stage, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, stage, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("stage", stage)
}

// Setup builds the logger and installs it as the slog default.
func Setup(stage, level string) *slog.Logger {
	logger := New(stage, level)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
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
