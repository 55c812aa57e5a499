// Package log configures the process-wide slog default used by every
// CamForge binary and exposes per-module child loggers.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default text handler on stderr. Unrecognized levels fall
// back to info so a typo in LOG_LEVEL never silences a service.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags a child logger with the owning component (api, search,
// archiver) so one process's log stream stays separable.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
