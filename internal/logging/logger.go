// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the base logger.
type Config struct {
	Level   string    // "debug", "info", ...; defaults to info
	Format  string    // "json" or "text"
	Output  io.Writer // defaults to os.Stdout
	Service string
}

var (
	once sync.Once
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Configure initialises the base logger exactly once.
func Configure(cfg Config) zerolog.Logger {
	once.Do(func() {
		base = New(cfg)
		zerolog.TimeFieldFormat = time.RFC3339
	})
	return base
}

// New builds a logger from cfg without touching the base logger.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	if cfg.Format == "text" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339, NoColor: true}
	}

	service := cfg.Service
	if service == "" {
		service = "kitsusync"
	}

	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
