// Package logging configures the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog handler.
// Format "console" uses a colorized tint handler for local development;
// anything else gets line-delimited JSON for log collectors.
func Setup(format, level string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, format, level)))
}

// NewHandler builds a slog handler writing to w.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)

	if format == "console" {
		return tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
