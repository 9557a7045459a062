// Package logging builds the zerolog loggers used across notifmon.
//
// The TUI owns the terminal while it runs, so the interactive logger
// writes JSON to a file. CLI subcommands log to stderr through a
// console writer instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nhle/notification-monitor/internal/model"
)

const consoleTimeFormat = "15:04:05.000"

// FileLogger is a zerolog logger backed by an open file.
type FileLogger struct {
	zerolog.Logger
	file *os.File
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// NewFile opens (or creates) cfg.File and returns a JSON logger writing
// to it at cfg.Level.
func NewFile(cfg model.LogConfig) (*FileLogger, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	zl := zerolog.New(zerolog.SyncWriter(f)).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()

	return &FileLogger{Logger: zl, file: f}, nil
}

// NewConsole returns a human-readable logger on w.
func NewConsole(w io.Writer, level string) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	return zerolog.New(cw).
		Level(ParseLevel(level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
