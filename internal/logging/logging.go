// Package logging configures the process-wide slog default.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levels = map[string]slog.Level{
	"":         slog.LevelInfo,
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// Configure installs a process-wide slog default writing to stderr.
// stdout stays reserved for the menu and status output.
func Configure(level string) error {
	parsed, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	slog.SetDefault(slog.New(h))
	return nil
}
