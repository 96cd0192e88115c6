// Package loggingtest provides loggers for use in tests.
package loggingtest

import (
	"log/slog"
	"os"
	"testing"
)

// NewForTesting returns a debug-level text logger tagged with the test name.
func NewForTesting(t testing.TB) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return logger.With("test", t.Name())
}
