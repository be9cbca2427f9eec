package store

import (
	"fmt"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// ChunkVector is one (seq, pos, vector) tuple to persist for a hash.
type ChunkVector struct {
	Seq    int
	Pos    int
	Vector []float32
}

func vectorKey(hash string, seq int) string {
	return fmt.Sprintf("%s:%d", hash, seq)
}

// EnsureVectorIndex creates the vector index if absent; if an existing
// index has a different dimension, it is dropped and rebuilt and the
// caller is told to re-embed everything.
func (s *Store) EnsureVectorIndex(dim int) (rebuilt bool, err error) {
	rebuilt = s.vec.ensureDimension(dim)
	if rebuilt {
		if _, err := s.db.Exec(`DELETE FROM content_vectors`); err != nil {
			return rebuilt, qmderr.External(qmderr.CodeSQLEngine, err)
		}
	}
	if _, err := s.db.Exec(
		`INSERT INTO index_state(key, value) VALUES ('index_dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", dim),
	); err != nil {
		return rebuilt, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return rebuilt, nil
}

// InsertVectors persists chunk vectors for hash transactionally, keeping
// sequences contiguous and the metadata table and vector index holding
// the same key set.
func (s *Store) InsertVectors(hash string, vectors []ChunkVector, model string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	for _, v := range vectors {
		if _, err := tx.Exec(
			`INSERT INTO content_vectors(hash, seq, pos, model, embedded_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(hash, seq) DO UPDATE SET pos = excluded.pos, model = excluded.model, embedded_at = excluded.embedded_at`,
			hash, v.Seq, v.Pos, model, now,
		); err != nil {
			return qmderr.External(qmderr.CodeSQLEngine, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}

	// The vector-index graph is maintained outside the SQL transaction (it
	// is not a SQL table); insert after commit succeeds so a failed SQL
	// write never leaves an orphaned graph entry.
	for _, v := range vectors {
		if err := s.vec.insert(vectorKey(hash, v.Seq), v.Vector); err != nil {
			return err
		}
	}
	return nil
}

// DeleteVectors removes every vector belonging to hash from both the
// metadata table and the vector index.
func (s *Store) DeleteVectors(hash string) error {
	rows, err := s.db.Query(`SELECT seq FROM content_vectors WHERE hash = ?`, hash)
	if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	var seqs []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return qmderr.External(qmderr.CodeSQLEngine, err)
		}
		seqs = append(seqs, seq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}

	if _, err := s.db.Exec(`DELETE FROM content_vectors WHERE hash = ?`, hash); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	for _, seq := range seqs {
		s.vec.delete(vectorKey(hash, seq))
	}
	return nil
}

// SearchVec runs a nearest-neighbour search over the companion vector
// index and joins back to documents/content for display.
func (s *Store) SearchVec(embedding []float32, limit int, collectionIDs []int64) ([]VecResult, error) {
	hits, err := s.vec.search(embedding, limit*4) // over-fetch; collection filter may drop some
	if err != nil {
		return nil, err
	}

	allowed := make(map[int64]bool, len(collectionIDs))
	for _, id := range collectionIDs {
		allowed[id] = true
	}

	var results []VecResult
	for _, h := range hits {
		hash, seq, ok := splitVectorKey(h.Key)
		if !ok {
			continue
		}
		var pos int
		if err := s.db.QueryRow(`SELECT pos FROM content_vectors WHERE hash = ? AND seq = ?`, hash, seq).Scan(&pos); err != nil {
			continue
		}
		row := s.db.QueryRow(`
			SELECT d.id, d.collection_id, d.filepath, d.display_path, d.title, c.body
			FROM documents d JOIN content c ON c.hash = d.hash
			WHERE d.hash = ? AND d.active = 1 LIMIT 1`, hash)
		var docID, collectionID int64
		var filepath_, displayPath, title, body string
		if err := row.Scan(&docID, &collectionID, &filepath_, &displayPath, &title, &body); err != nil {
			continue
		}
		if len(allowed) > 0 && !allowed[collectionID] {
			continue
		}
		results = append(results, VecResult{
			DocID: docID, Filepath: filepath_, DisplayPath: displayPath, Title: title, Body: body,
			Score: h.Score, Source: "vec", ChunkSeq: seq, ChunkPos: pos,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func splitVectorKey(key string) (hash string, seq int, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			hash = key[:i]
			var n int
			if _, err := fmt.Sscanf(key[i+1:], "%d", &n); err != nil {
				return "", 0, false
			}
			return hash, n, true
		}
	}
	return "", 0, false
}

// OrphanStats reports how many distinct vectored hashes no longer have
// an active document, alongside the total and the orphan ratio — the
// Compactor's eligibility inputs.
func (s *Store) OrphanStats() (orphans, total int, ratio float64, err error) {
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT hash) FROM content_vectors`).Scan(&total); err != nil {
		return 0, 0, 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	if err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT hash) FROM content_vectors
		WHERE hash NOT IN (SELECT hash FROM documents WHERE active = 1)
	`).Scan(&orphans); err != nil {
		return 0, 0, 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	if total > 0 {
		ratio = float64(orphans) / float64(total)
	}
	return orphans, total, ratio, nil
}

// PruneOrphanVectors deletes vectors whose hash is no longer referenced by
// any active document.
func (s *Store) PruneOrphanVectors() (int, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT hash FROM content_vectors
		WHERE hash NOT IN (SELECT hash FROM documents WHERE active = 1)
	`)
	if err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	var orphans []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return 0, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		orphans = append(orphans, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	for _, h := range orphans {
		if err := s.DeleteVectors(h); err != nil {
			return 0, err
		}
	}
	return len(orphans), nil
}
