package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/store"
)

// debounce coalesces bursts of filesystem events (editors often emit
// several writes per save) before triggering a re-walk.
const debounce = 300 * time.Millisecond

// Watch re-runs Run against root/glob whenever a file under root changes,
// until ctx is cancelled. onCounts is invoked after every re-walk,
// including the initial one. This is an opt-in supplement to the one-shot
// `add` command for long-lived use.
func Watch(ctx context.Context, s *store.Store, root, glob string, onCounts func(Counts, error)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return qmderr.External(qmderr.CodeIO, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return qmderr.External(qmderr.CodeIO, err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, absRoot); err != nil {
		return qmderr.External(qmderr.CodeIO, err)
	}

	runOnce := func() {
		_, counts, err := Run(ctx, s, absRoot, glob)
		onCounts(counts, err)
	}
	runOnce()

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case <-pending:
			runOnce()

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("ingest watch error", "error", werr)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (isHidden(d.Name()) && path != root) {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
