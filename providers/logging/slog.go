// Package logging contains providers for common loggers.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Config controls the logger built by [New]. It is externally provided:
// decode it from flags or configuration and pass it to the generated Build
// functions.
//
//rig:external
type Config struct {
	Level slog.Level `help:"The default logging level." default:"info"`
	JSON  bool       `help:"Enable JSON logging."`
}

// New builds a root [slog.Logger] writing to stderr: a colourised tint
// handler when stderr is a terminal, JSON otherwise. Stdout is left free for
// program output.
//
//rig:provider weak
func New(config Config) *slog.Logger {
	out := os.Stderr
	var handler slog.Handler
	if config.JSON || !isatty.IsTerminal(out.Fd()) {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: config.Level})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      config.Level,
			TimeFormat: "15:04:05",
		})
	}
	return slog.New(handler)
}
