package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/qmd-dev/qmd/internal/chunk"
	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/store"
)

// Counts is the summary returned by one ingest call.
type Counts struct {
	Indexed        int
	Updated        int
	Unchanged      int
	Removed        int
	NeedsEmbedding int
}

// ProgressFunc receives one update per file processed by Run, or per
// content hash embedded by Embed. total is 0 until the work list is known.
type ProgressFunc func(current, total int, currentFile string)

// Option configures an optional behavior of Run or Embed.
type Option func(*options)

type options struct {
	onProgress ProgressFunc
	chunkCfg   chunk.Config
}

// WithProgress registers a callback invoked after each unit of work.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.onProgress = fn }
}

// WithChunkConfig overrides the default chunk size/overlap for Embed.
func WithChunkConfig(cfg chunk.Config) Option {
	return func(o *options) { o.chunkCfg = cfg }
}

func buildOptions(opts []Option) options {
	o := options{chunkCfg: chunk.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Run reconciles root/glob with s: walk, hash, upsert each file, then
// deactivate whatever disappeared. It returns the collection id and the
// resulting counts.
func Run(ctx context.Context, s *store.Store, root, glob string, opts ...Option) (int64, Counts, error) {
	cfg := buildOptions(opts)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, Counts{}, qmderr.External(qmderr.CodeIO, err)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		if err == nil {
			err = qmderr.Usage(qmderr.CodeUnknownCollection, "collection root is not a directory").WithDetail("root", absRoot)
			return 0, Counts{}, err
		}
		return 0, Counts{}, qmderr.External(qmderr.CodeIO, err)
	}

	collectionID, err := s.PutCollection(absRoot, glob)
	if err != nil {
		return 0, Counts{}, err
	}

	rels, err := enumerate(absRoot, glob)
	if err != nil {
		return collectionID, Counts{}, qmderr.External(qmderr.CodeIO, err)
	}

	var counts Counts
	seen := make(map[string]bool, len(rels))
	for i, rel := range rels {
		select {
		case <-ctx.Done():
			return collectionID, counts, qmderr.Cancelled(qmderr.CodeShutdown, "ingest cancelled")
		default:
		}

		if cfg.onProgress != nil {
			cfg.onProgress(i+1, len(rels), rel)
		}

		full := filepath.Join(absRoot, rel)
		raw, err := os.ReadFile(full)
		if err != nil {
			// A single unreadable file degrades the batch rather than
			// aborting it.
			continue
		}
		body := string(raw)
		title := deriveTitle(rel, body)

		outcome, _, err := s.UpsertDocument(collectionID, rel, body, title)
		if err != nil {
			return collectionID, counts, err
		}
		switch outcome {
		case store.Indexed:
			counts.Indexed++
		case store.Updated:
			counts.Updated++
		case store.Unchanged:
			counts.Unchanged++
		case store.Rejected:
			continue // active elsewhere; not part of this collection's seen set
		}
		seen[rel] = true
	}

	removed, err := s.DeactivateMissing(collectionID, seen)
	if err != nil {
		return collectionID, counts, err
	}
	counts.Removed = removed

	st, err := s.Status()
	if err != nil {
		return collectionID, counts, err
	}
	counts.NeedsEmbedding = st.NeedsEmbedding

	return collectionID, counts, nil
}
