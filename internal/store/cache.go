package store

import (
	"database/sql"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// CacheGet performs a read-through lookup of the provider cache
// (Ollama/rerank results keyed by hash(endpoint ∥ canonical_json(request))).
// Entries older than ttl are treated as misses and are not returned, but
// are left for the next EvictCache call to clean up.
func (s *Store) CacheGet(key string, ttl time.Duration) ([]byte, bool, error) {
	var response []byte
	var createdAt string
	err := s.db.QueryRow(`SELECT response, created_at FROM provider_cache WHERE cache_key = ?`, key).Scan(&response, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	ts, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, false, nil
	}
	if time.Since(ts) > ttl {
		return nil, false, nil
	}
	return response, true, nil
}

// CachePut writes a provider cache entry.
func (s *Store) CachePut(key, endpoint string, response []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO provider_cache(cache_key, endpoint, response, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET response = excluded.response, created_at = excluded.created_at`,
		key, endpoint, response, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return nil
}

// EvictCache removes provider cache entries older than ttl and returns the
// count removed.
func (s *Store) EvictCache(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl).UTC().Format(timeFormat)
	res, err := s.db.Exec(`DELETE FROM provider_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PathContext returns the longest matching path_contexts prefix for path,
// if any.
func (s *Store) PathContext(path string) (string, bool, error) {
	rows, err := s.db.Query(`SELECT prefix, context FROM path_contexts`)
	if err != nil {
		return "", false, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	best := ""
	bestLen := -1
	for rows.Next() {
		var prefix, ctx string
		if err := rows.Scan(&prefix, &ctx); err != nil {
			return "", false, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if len(prefix) <= len(path) && path[:len(prefix)] == prefix && len(prefix) > bestLen {
			best = ctx
			bestLen = len(prefix)
		}
	}
	if bestLen < 0 {
		return "", false, rows.Err()
	}
	return best, true, rows.Err()
}
