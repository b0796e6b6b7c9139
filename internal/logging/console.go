// Package logging provides the diagnostic console logger and the run log
// file kept in the build directory.
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config configures the console logger.
type Config struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// DefaultConfig logs warnings and errors as text to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelWarn, Output: os.Stderr}
}

// ParseLevel maps a level name to a charm log level. Unknown names map to
// info.
func ParseLevel(name string) charmlog.Level {
	switch name {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelInfo:
		return charmlog.InfoLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// NewConsole builds the structured diagnostic logger.
func NewConsole(cfg Config) *charmlog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
		Prefix:          "fpgaflow",
	})
	if cfg.JSON {
		logger.SetFormatter(charmlog.JSONFormatter)
	} else {
		logger.SetFormatter(charmlog.TextFormatter)
	}
	return logger
}
