// SPDX-License-Identifier: MPL-2.0

// Package logging configures the process logger. Library packages log through
// log/slog; New returns a charmbracelet/log handler so those records are
// rendered in the same style as the rest of the CLI output.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is printed in front of every log line.
const Prefix = "tapkit"

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error. Unknown values fall back to info.
	Level string
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Timestamps adds a time column to every line.
	Timestamps bool
}

// New returns a charm logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		ReportTimestamp: opts.Timestamps,
		Level:           parseLevel(opts),
	})
}

// Install makes a logger writing to w the slog default and returns it.
func Install(w io.Writer, opts Options) *slog.Logger {
	logger := slog.New(New(w, opts))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(opts Options) log.Level {
	if opts.Verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		return log.InfoLevel
	}
	return level
}
