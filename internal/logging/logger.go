package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/svcctl/internal/config"
)

// NewLogger creates a structured JSON logger for the long-running binaries.
// Non-empty context fields from the config are added automatically.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

// NewConsoleLogger creates a human-readable logger on stderr for the CLI,
// keeping stdout free for reports.
func NewConsoleLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.ControlPlaneURL != "" {
		ctx = ctx.Str("control_plane", cfg.ControlPlaneURL)
	}
	if cfg.TaskQueue != "" {
		ctx = ctx.Str("task_queue", cfg.TaskQueue)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
