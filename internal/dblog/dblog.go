// Package dblog provides the structured logging sink the engine's
// injected log callback writes through (spec.md §7: "prints colored
// progress via an injected log callback but never swallows errors").
package dblog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log sink.
type Options struct {
	// Path, when non-empty, rotates logs through lumberjack instead of
	// writing to stderr.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// New builds a *slog.Logger. When opts.Path is set, output rotates
// through lumberjack the way the teacher ships the dependency for its
// own (unexercised, in the retrieved subset) log rotation; otherwise it
// writes structured text to stderr, matching the teacher's CLI-first
// logging posture.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Path != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		maxAge := opts.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 28
		}
		w = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		}
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler)
}

// Progress is a stage-tagged progress callback shape. stage identifies
// the phase ("make", "migrate:undo", "migrate:redo", "pragma",
// "integrity"). The Migrator does not invoke it; it logs through the
// *slog.Logger it is given.
type Progress func(stage, message string, attrs ...any)

// FromLogger adapts a *slog.Logger to the Progress callback shape.
func FromLogger(log *slog.Logger) Progress {
	return func(stage, message string, attrs ...any) {
		log.Info(message, append([]any{"stage", stage}, attrs...)...)
	}
}
