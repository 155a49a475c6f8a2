// Package logging configures structured logging for the command line.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Levels lists accepted level names.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// NewHandler returns a terminal-friendly slog handler writing to w
// (stderr if nil). Unknown level names mean info.
func NewHandler(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{Level: log.InfoLevel}
	switch strings.ToLower(level) {
	case "trace":
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
		opts.ReportTimestamp = true
	case "debug":
		opts.Level = log.DebugLevel
		opts.ReportTimestamp = true
	case "warn", "warning":
		opts.Level = log.WarnLevel
	case "error":
		opts.Level = log.ErrorLevel
	}
	return log.NewWithOptions(w, opts)
}

// New returns a logger using NewHandler.
func New(level string, w io.Writer) *slog.Logger {
	return slog.New(NewHandler(level, w))
}

// Setup sets the default logger and returns it.
func Setup(level string) *slog.Logger {
	logger := New(level, nil)
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes level of a logger created by New.
// Other loggers are left unchanged.
func SetLevel(logger *slog.Logger, level string) {
	l, ok := logger.Handler().(*log.Logger)
	if !ok {
		return
	}
	h := NewHandler(level, io.Discard).(*log.Logger)
	l.SetLevel(h.GetLevel())
	l.SetReportCaller(strings.EqualFold(level, "trace"))
	l.SetReportTimestamp(h.GetLevel() == log.DebugLevel)
}
