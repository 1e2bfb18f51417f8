// Package logger provides modifications to charmbracelet/log's default logger to be used in various packages.
//
// Everything goes to stderr: stdout belongs to the IPC stream in server mode.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a charm log with a component prefix that follows the global level.
func New(prefix string) *log.Logger {
	level := log.GetLevel()
	return NewWithConfig(os.Stderr, prefix, level, false, level <= log.DebugLevel, log.TextFormatter)
}

// NewWithConfig creates a new charm log with custom config
func NewWithConfig(w io.Writer, prefix string, level log.Level, caller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return NewWithConfig(io.Discard, "", log.FatalLevel, false, false, log.TextFormatter)
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a
// log.Level. Unknown names fall back to def.
func ParseLevel(name string, def log.Level) log.Level {
	if name == "" {
		return def
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return def
	}
	return lvl
}
