package store

import "github.com/qmd-dev/qmd/internal/qmderr"

// PendingRow is one distinct active content hash with no seq=0 vector yet.
type PendingRow struct {
	Hash  string
	Body  string
	Title string
}

// PendingEmbeddings selects the distinct (hash, body, title) tuples for
// active documents with no seq=0 row in content_vectors, the embedding
// pass's work list.
func (s *Store) PendingEmbeddings() ([]PendingRow, error) {
	rows, err := s.db.Query(`
		SELECT c.hash, c.body, MIN(d.title)
		FROM content c
		JOIN documents d ON d.hash = c.hash AND d.active = 1
		WHERE NOT EXISTS (SELECT 1 FROM content_vectors v WHERE v.hash = c.hash AND v.seq = 0)
		GROUP BY c.hash
	`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	var out []PendingRow
	for rows.Next() {
		var r PendingRow
		if err := rows.Scan(&r.Hash, &r.Body, &r.Title); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResetVectors implements the force-embed reset: delete all
// vectors and drop the vector-index dimension so it is rediscovered from
// the next embedded chunk.
func (s *Store) ResetVectors() error {
	if _, err := s.db.Exec(`DELETE FROM content_vectors`); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	s.vec.reset()
	return nil
}
