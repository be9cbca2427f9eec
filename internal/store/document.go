package store

import (
	"database/sql"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

const timeFormat = time.RFC3339Nano

// PutCollection resolves or creates the collection row for (root, glob).
func (s *Store) PutCollection(root, glob string) (int64, error) {
	_, err := s.db.Exec(
		`INSERT INTO collections(root_path, glob_pattern) VALUES (?, ?)
		 ON CONFLICT(root_path, glob_pattern) DO UPDATE SET root_path = root_path`,
		root, glob,
	)
	if err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	var existing int64
	if err := s.db.QueryRow(`SELECT id FROM collections WHERE root_path = ? AND glob_pattern = ?`, root, glob).Scan(&existing); err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return existing, nil
}

// activeDisplayPaths returns the set of display_path values currently held
// by active documents, for the display-path uniqueness computation.
func (s *Store) activeDisplayPaths(tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.Query(`SELECT display_path FROM documents WHERE active = 1 AND display_path != ''`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		out[p] = true
	}
	return out, rows.Err()
}

// UpsertDocument dedupes by (collection, filepath, hash),
// soft-deactivates the old row on change, rejects cross-collection
// duplicates, and assigns a unique display_path to each new active row.
func (s *Store) UpsertDocument(collectionID int64, filepath, body, title string) (UpsertOutcome, *Document, error) {
	hash := HashContent(body)
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer tx.Rollback()

	var existing Document
	err = tx.QueryRow(
		`SELECT id, display_path, hash FROM documents WHERE collection_id = ? AND filepath = ? AND active = 1`,
		collectionID, filepath,
	).Scan(&existing.ID, &existing.DisplayPath, &existing.Hash)

	switch {
	case err == sql.ErrNoRows:
		var otherActive int64
		checkErr := tx.QueryRow(`SELECT id FROM documents WHERE filepath = ? AND active = 1`, filepath).Scan(&otherActive)
		if checkErr == nil {
			return Rejected, nil, nil // active elsewhere, reject without mutating state
		}
		if checkErr != sql.ErrNoRows {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, checkErr)
		}

		if _, err := tx.Exec(`INSERT INTO content(hash, body, created_at) VALUES (?, ?, ?) ON CONFLICT(hash) DO NOTHING`, hash, body, now.Format(timeFormat)); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}

		existingPaths, err := s.activeDisplayPaths(tx)
		if err != nil {
			return "", nil, err
		}
		displayPath := DisplayPath(filepath, existingPaths)

		res, err := tx.Exec(
			`INSERT INTO documents(collection_id, filepath, display_path, title, hash, active, created_at, modified_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			collectionID, filepath, displayPath, title, hash, now.Format(timeFormat), now.Format(timeFormat),
		)
		if err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		id, _ := res.LastInsertId()
		if err := tx.Commit(); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		return Indexed, &Document{ID: id, CollectionID: collectionID, Filepath: filepath, DisplayPath: displayPath, Title: title, Hash: hash, Body: body, Active: true, CreatedAt: now, ModifiedAt: now}, nil

	case err != nil:
		return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)

	case existing.Hash == hash:
		if _, err := tx.Exec(`UPDATE documents SET title = ? WHERE id = ?`, title, existing.ID); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if err := tx.Commit(); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		return Unchanged, &Document{ID: existing.ID, CollectionID: collectionID, Filepath: filepath, DisplayPath: existing.DisplayPath, Title: title, Hash: hash, Body: body, Active: true}, nil

	default:
		if _, err := tx.Exec(`UPDATE documents SET active = 0, modified_at = ? WHERE id = ?`, now.Format(timeFormat), existing.ID); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if _, err := tx.Exec(`INSERT INTO content(hash, body, created_at) VALUES (?, ?, ?) ON CONFLICT(hash) DO NOTHING`, hash, body, now.Format(timeFormat)); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}

		existingPaths, err := s.activeDisplayPaths(tx)
		if err != nil {
			return "", nil, err
		}
		// Stable-unless-colliding policy: keep
		// the previous display_path if it is still unique once the old row
		// is deactivated; only recompute on collision.
		displayPath := existing.DisplayPath
		if displayPath == "" || existingPaths[displayPath] {
			displayPath = DisplayPath(filepath, existingPaths)
		}

		res, err := tx.Exec(
			`INSERT INTO documents(collection_id, filepath, display_path, title, hash, active, created_at, modified_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			collectionID, filepath, displayPath, title, hash, now.Format(timeFormat), now.Format(timeFormat),
		)
		if err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		id, _ := res.LastInsertId()
		if err := tx.Commit(); err != nil {
			return "", nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		return Updated, &Document{ID: id, CollectionID: collectionID, Filepath: filepath, DisplayPath: displayPath, Title: title, Hash: hash, Body: body, Active: true, CreatedAt: now, ModifiedAt: now}, nil
	}
}

// DeactivateMissing marks every active document in collectionID whose
// filepath is not in seenPaths as inactive, and returns the count.
func (s *Store) DeactivateMissing(collectionID int64, seenPaths map[string]bool) (int, error) {
	rows, err := s.db.Query(`SELECT id, filepath FROM documents WHERE collection_id = ? AND active = 1`, collectionID)
	if err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	type row struct {
		id       int64
		filepath string
	}
	var toDeactivate []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.filepath); err != nil {
			rows.Close()
			return 0, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if !seenPaths[r.filepath] {
			toDeactivate = append(toDeactivate, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	if len(toDeactivate) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	for _, r := range toDeactivate {
		if _, err := tx.Exec(`UPDATE documents SET active = 0, modified_at = ? WHERE id = ?`, now, r.id); err != nil {
			return 0, qmderr.External(qmderr.CodeSQLEngine, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return len(toDeactivate), nil
}
