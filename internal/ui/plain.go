package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per progress event, suitable for pipes and CI logs.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	started time.Time
}

// NewPlainRenderer creates a plain line renderer writing to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = time.Now()
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		if e := eta(time.Since(r.started), event.Current, event.Total); e != "" {
			fmt.Fprintf(r.out, "[%s] %d/%d %s (eta %s)\n", event.Stage.Icon(), event.Current, event.Total, event.CurrentFile, e)
			return
		}
		fmt.Fprintf(r.out, "[%s] %d/%d %s\n", event.Stage.Icon(), event.Current, event.Total, event.CurrentFile)
		return
	}
	fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.CurrentFile)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] %s (%s)\n", StageComplete.Icon(), stats.Summary, stats.Duration.Round(100*time.Millisecond))
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
