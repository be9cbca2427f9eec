package ingest

import (
	"context"

	"github.com/qmd-dev/qmd/internal/chunk"
	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/store"
)

// Embedder is the slice of the Model Runtime's capability set the
// embedding pass needs. Satisfied structurally by runtime.Service.
type Embedder interface {
	Embed(ctx context.Context, text, title string) ([]float32, string, error)
}

// EmbedCounts summarises one embedding pass.
type EmbedCounts struct {
	Embedded int // distinct content hashes newly embedded
	Chunks   int // total chunk vectors written
	Skipped  int // hashes skipped after a per-chunk failure (degrade, not abort)
}

// contentRow is one distinct (hash, body, title) tuple needing embedding.
type contentRow struct {
	hash  string
	body  string
	title string
}

// Embed implements the embedding pass: select active content
// with no seq=0 vector, chunk it, discover the dimension from the first
// chunk, then embed and persist every chunk. A cancelled context leaves
// any in-flight hash's vectors fully rolled back rather than partially
// written.
func Embed(ctx context.Context, s *store.Store, embedder Embedder, force bool, opts ...Option) (EmbedCounts, error) {
	cfg := buildOptions(opts)
	if force {
		if err := s.ResetVectors(); err != nil {
			return EmbedCounts{}, err
		}
	}

	rows, err := s.PendingEmbeddings()
	if err != nil {
		return EmbedCounts{}, err
	}

	var counts EmbedCounts
	dimEnsured := false

	for i, r := range rows {
		select {
		case <-ctx.Done():
			return counts, qmderr.Cancelled(qmderr.CodeShutdown, "embed cancelled")
		default:
		}

		if cfg.onProgress != nil {
			cfg.onProgress(i+1, len(rows), r.Title)
		}

		chunks := chunk.Split(r.Body, cfg.chunkCfg)
		if len(chunks) == 0 {
			continue
		}

		vectors := make([]store.ChunkVector, 0, len(chunks))
		skippedHash := false
		for i, c := range chunks {
			select {
			case <-ctx.Done():
				return counts, qmderr.Cancelled(qmderr.CodeShutdown, "embed cancelled")
			default:
			}

			vec, _, err := embedder.Embed(ctx, c.Text, r.Title)
			if err != nil {
				// A single chunk failure degrades the hash: skip it and
				// move on to the next content row rather than aborting
				// the batch.
				skippedHash = true
				break
			}
			if !dimEnsured {
				if _, err := s.EnsureVectorIndex(len(vec)); err != nil {
					return counts, err
				}
				dimEnsured = true
			}
			vectors = append(vectors, store.ChunkVector{Seq: i, Pos: c.Pos, Vector: vec})
		}

		if skippedHash || len(vectors) == 0 {
			counts.Skipped++
			continue
		}

		if err := s.InsertVectors(r.Hash, vectors, "default"); err != nil {
			return counts, err
		}
		counts.Embedded++
		counts.Chunks += len(vectors)
	}

	return counts, nil
}
