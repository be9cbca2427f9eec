package store

import (
	"github.com/qmd-dev/qmd/internal/qmderr"
)

// IntegrityReport summarises the index's integrity checks: orphaned
// vectors, partial embeddings, FTS mismatch, orphaned documents. These
// are surfaced by status/cleanup flows, never raised from search.
type IntegrityReport struct {
	OrphanedVectors   []string // hashes present in content_vectors with no active document
	PartialEmbeddings []string // hashes whose seq run is not contiguous from 0
	FTSMismatch       int      // active documents missing from the FTS shadow
	OrphanedDocuments []int64  // inactive documents past the retention window, eligible for hard delete
}

// CheckIntegrity scans for orphaned vectors, partial embeddings and FTS
// mismatch. It does not scan for orphaned documents: OrphanedDocuments is
// always left empty.
func (s *Store) CheckIntegrity() (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.Query(`
		SELECT DISTINCT hash FROM content_vectors
		WHERE hash NOT IN (SELECT hash FROM documents WHERE active = 1)
	`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		report.OrphanedVectors = append(report.OrphanedVectors, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	hashRows, err := s.db.Query(`SELECT DISTINCT hash FROM content_vectors`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	var hashes []string
	for hashRows.Next() {
		var h string
		if err := hashRows.Scan(&h); err != nil {
			hashRows.Close()
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		hashes = append(hashes, h)
	}
	hashRows.Close()
	if err := hashRows.Err(); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	for _, h := range hashes {
		seqRows, err := s.db.Query(`SELECT seq FROM content_vectors WHERE hash = ? ORDER BY seq`, h)
		if err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		expected := 0
		contiguous := true
		for seqRows.Next() {
			var seq int
			if err := seqRows.Scan(&seq); err != nil {
				seqRows.Close()
				return nil, qmderr.External(qmderr.CodeSQLEngine, err)
			}
			if seq != expected {
				contiguous = false
			}
			expected++
		}
		seqRows.Close()
		if err := seqRows.Err(); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if !contiguous {
			report.PartialEmbeddings = append(report.PartialEmbeddings, h)
		}
	}

	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM documents d
		WHERE d.active = 1 AND NOT EXISTS (SELECT 1 FROM documents_fts f WHERE f.rowid = d.id)
	`).Scan(&report.FTSMismatch); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	return report, nil
}

// RebuildFTS repopulates the FTS shadow from documents/content.
func (s *Store) RebuildFTS() error {
	tx, err := s.db.Begin()
	if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM documents_fts`); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO documents_fts(rowid, display_path, title, body)
		SELECT d.id, d.display_path, d.title, c.body
		FROM documents d JOIN content c ON c.hash = d.hash
		WHERE d.active = 1
	`); err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return tx.Commit()
}
