package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation defaults.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// Options configures New.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// File additionally writes logs to a rotated file at this path.
	File string

	// MaxSizeMB is the size that triggers rotation. Zero uses DefaultMaxSizeMB.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept. Zero uses DefaultMaxBackups.
	MaxBackups int
}

// New creates a redacting logger writing to w and, when opts.File is set,
// to a rotated log file. The returned close function releases the file.
func New(w io.Writer, opts Options) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, DefaultMaxBackups),
			MaxAge:     DefaultMaxAgeDays,
			LocalTime:  true,
		}
		w = io.MultiWriter(w, rotator)
		closeFn = rotator.Close
	}

	return slog.New(NewRedactingHandler(newHandler(w, opts))), closeFn, nil
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
