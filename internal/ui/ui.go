// Package ui renders add/embed progress to a terminal, falling back to
// plain line-oriented output when stdout is not a TTY.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/qmd-dev/qmd/internal/format"
)

// Stage is a phase of the add/embed pipeline.
type Stage int

const (
	// StageScanning covers walking the collection root and upserting documents.
	StageScanning Stage = iota
	// StageEmbedding covers chunking and embedding pending content.
	StageEmbedding
	// StageComplete marks the run as finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageEmbedding:
		return "Embedding"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage label used by the plain renderer.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageEmbedding:
		return "EMBED"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one unit-of-work update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
}

// CompletionStats summarizes a finished run for the closing line.
type CompletionStats struct {
	Summary  string
	Duration time.Duration
}

// Renderer displays add/embed progress.
type Renderer interface {
	// Start initializes the renderer and begins rendering in the background.
	Start(ctx context.Context) error
	// UpdateProgress records one progress event.
	UpdateProgress(event ProgressEvent)
	// Complete marks the run finished with a final summary.
	Complete(stats CompletionStats)
	// Stop tears down the renderer, restoring the terminal if needed.
	Stop() error
}

// Config configures the renderer returned by NewRenderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption mutates a Config.
type ConfigOption func(*Config)

// WithForcePlain forces the plain line renderer regardless of TTY detection.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables lipgloss color output in the TUI renderer.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// NewConfig builds a Config from output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a TUI renderer for interactive terminals and a plain
// line renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal file descriptor.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// eta estimates remaining time from elapsed duration and progress so far,
// rendered with format.ETA. Returns "" until enough progress has been made
// to extrapolate.
func eta(elapsed time.Duration, current, total int) string {
	if current <= 0 || total <= 0 || current >= total {
		return ""
	}
	perItem := elapsed / time.Duration(current)
	remaining := perItem * time.Duration(total-current)
	return format.ETA(remaining)
}

// DetectCI reports whether a common CI environment variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
