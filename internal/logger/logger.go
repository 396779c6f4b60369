// Package logger builds the process-wide slog logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config selects the handler. Output is "stderr", "stdout", or a file
// path; review output goes to stdout, so logs default to stderr.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// New builds a logger from the config. A non-nil writer overrides
// cfg.Output (used by tests). Unknown levels fall back to info.
func New(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		switch cfg.Output {
		case "stdout":
			w = os.Stdout
		case "stderr", "":
			w = os.Stderr
		default:
			f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err != nil {
				slog.Warn("cannot open log file, falling back to stderr", "path", cfg.Output, "err", err)
				w = os.Stderr
			} else {
				w = f
			}
		}
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		*level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
