package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

const schemaVersion = 1

// Store is the handle over the single embedded SQL database for one index,
// plus the companion vector index file living alongside it.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	vec    *vectorIndex
	mu     sync.RWMutex
	closed bool
}

// Open returns a Store for the database at path, performing idempotent
// schema initialisation and forward migration, and acquiring the
// companion vector index. WAL mode is configured for concurrent readers.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, qmderr.External(qmderr.CodeIO, err)
		}
	}

	lk := flock.New(path + ".lock")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	db.SetMaxOpenConns(1) // single writer; modernc.org/sqlite has no internal pool for writes

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	s := &Store{db: db, path: path, lock: lk}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	vec, err := openVectorIndex(path + ".hnsw")
	if err != nil {
		db.Close()
		return nil, err
	}
	s.vec = vec

	if dim, ok, err := s.getIndexDimension(); err != nil {
		db.Close()
		return nil, err
	} else if ok {
		s.vec.setDimension(dim)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS index_state (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root_path TEXT NOT NULL,
			glob_pattern TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			UNIQUE(root_path, glob_pattern)
		)`,
		`CREATE TABLE IF NOT EXISTS content (
			hash TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id INTEGER NOT NULL REFERENCES collections(id),
			filepath TEXT NOT NULL,
			display_path TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			hash TEXT NOT NULL REFERENCES content(hash),
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_active_filepath
			ON documents(filepath) WHERE active = 1`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_active_display_path
			ON documents(display_path) WHERE active = 1 AND display_path != ''`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			display_path, title, body, tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_ai AFTER INSERT ON documents
		 WHEN new.active = 1
		 BEGIN
			INSERT INTO documents_fts(rowid, display_path, title, body)
			SELECT new.id, new.display_path, new.title, (SELECT body FROM content WHERE hash = new.hash);
		 END`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_ad AFTER DELETE ON documents
		 BEGIN
			DELETE FROM documents_fts WHERE rowid = old.id;
		 END`,
		`CREATE TRIGGER IF NOT EXISTS documents_fts_au AFTER UPDATE ON documents
		 BEGIN
			DELETE FROM documents_fts WHERE rowid = old.id;
			INSERT INTO documents_fts(rowid, display_path, title, body)
			SELECT new.id, new.display_path, new.title, (SELECT body FROM content WHERE hash = new.hash)
			WHERE new.active = 1;
		 END`,
		`CREATE TABLE IF NOT EXISTS content_vectors (
			hash TEXT NOT NULL,
			seq INTEGER NOT NULL,
			pos INTEGER NOT NULL,
			model TEXT NOT NULL,
			embedded_at TEXT NOT NULL,
			PRIMARY KEY (hash, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS path_contexts (
			prefix TEXT PRIMARY KEY,
			context TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS provider_cache (
			cache_key TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			response BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			command TEXT NOT NULL,
			query TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			index_name TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return qmderr.Wrap(qmderr.KindFatal, qmderr.CodeSchemaIncompatible, fmt.Errorf("init schema: %w (%s)", err, stmt))
		}
	}

	var version string
	if err := s.db.QueryRow(`SELECT value FROM index_state WHERE key = 'schema_version'`).Scan(&version); err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO index_state(key, value) VALUES ('schema_version', ?)`, fmt.Sprintf("%d", schemaVersion)); err != nil {
			return qmderr.External(qmderr.CodeSQLEngine, err)
		}
	} else if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	// Forward-only migration: an index written by a newer, unknown schema
	// version fails fast.
	var stored int
	if _, err := fmt.Sscanf(version, "%d", &stored); err == nil && stored > schemaVersion {
		return qmderr.Wrap(qmderr.KindFatal, qmderr.CodeSchemaIncompatible, fmt.Errorf("index schema version %d is newer than supported version %d", stored, schemaVersion))
	}

	return nil
}

// Close releases the handle; safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.vec != nil {
		if err := s.vec.save(); err != nil {
			return err
		}
	}
	_ = s.lock.Unlock()
	return s.db.Close()
}

// Lock acquires the cross-process advisory write lock for the duration of
// an ingest/embed pass, extending the single-writer discipline across
// processes.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	ok, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeIO, err)
	}
	if !ok {
		return nil, qmderr.State("E_INDEX_LOCKED", "another process is writing to this index")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) getIndexDimension() (int, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM index_state WHERE key = 'index_dimension'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	var dim int
	_, scanErr := fmt.Sscanf(v, "%d", &dim)
	if scanErr != nil {
		return 0, false, qmderr.External(qmderr.CodeSQLEngine, scanErr)
	}
	return dim, true, nil
}
