// Package logging provides structured logging with slog for provmarkd.
//
// The logger is the diagnostics sink of the system: every component
// reports through it, nothing in the detection or annotation contract
// depends on it, and failures surface here rather than as user-visible
// errors.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum level to output: debug, info, warn, error.
	Level string

	// Format is "text" or "json".
	Format string

	// FilePath, when set, appends to a size-rotated file instead of
	// stderr.
	FilePath string

	// MaxSizeMB is the rotation threshold.
	MaxSizeMB int64

	// Component is attached to every record.
	Component string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "text",
		MaxSizeMB: 50,
		Component: "provmarkd",
	}
}

// New builds a logger from the configuration.
func New(cfg Config) (*slog.Logger, error) {
	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		rotator, err := NewFileRotator(cfg.FilePath, cfg.MaxSizeMB)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		out = rotator
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	log := slog.New(handler)
	if cfg.Component != "" {
		log = log.With("component", cfg.Component)
	}
	return log, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
