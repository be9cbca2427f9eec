// Package logging configures qmd's structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config controls logger construction.
type Config struct {
	Level        slog.Level
	FilePath     string // empty disables file logging
	MaxSizeMB    int    // rotate when the current file exceeds this size
	MaxFiles     int    // number of rotated files to retain
	WriteToStderr bool
}

// DefaultConfig returns sane defaults for interactive CLI use: info level,
// stderr only, no file.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, WriteToStderr: true, MaxSizeMB: 10, MaxFiles: 3}
}

// DebugConfig returns defaults for `--debug`: debug level, stderr only.
func DebugConfig() Config {
	c := DefaultConfig()
	c.Level = slog.LevelDebug
	return c
}

// Setup builds a *slog.Logger per cfg and returns a cleanup func that
// flushes/closes any opened file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	closeFn := func() {}

	if cfg.WriteToStderr {
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		if dir := filepath.Dir(cfg.FilePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
			}
		}
		rw, err := newRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file: %w", err)
		}
		writers = append(writers, rw)
		closeFn = func() { _ = rw.Close() }
	}

	var out io.Writer = io.Discard
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.Level})
	return slog.New(handler), closeFn, nil
}
