package store

import (
	"strings"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// SearchFTS runs a full-text query against the FTS5 shadow and returns
// results with a normalised BM25 score in [0,1].
func (s *Store) SearchFTS(query string, limit int, collectionIDs []int64) ([]FTSResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	ftsQuery := escapeFTSQuery(query)

	sqlQuery := `
		SELECT d.id, d.filepath, d.display_path, d.title, c.body, bm25(documents_fts) AS rank
		FROM documents_fts f
		JOIN documents d ON d.id = f.rowid
		JOIN content c ON c.hash = d.hash
		WHERE documents_fts MATCH ? AND d.active = 1
	`
	args := []any{ftsQuery}
	if len(collectionIDs) > 0 {
		sqlQuery += " AND d.collection_id IN (" + placeholders(len(collectionIDs)) + ")"
		for _, id := range collectionIDs {
			args = append(args, id)
		}
	}
	sqlQuery += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	var results []FTSResult
	var maxNeg float64
	for rows.Next() {
		var r FTSResult
		var raw float64
		if err := rows.Scan(&r.DocID, &r.Filepath, &r.DisplayPath, &r.Title, &r.Body, &raw); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		r.Source = "fts"
		neg := -raw // bm25() is negative-is-better; flip so higher is better
		if neg < 0 {
			neg = 0
		}
		if neg > maxNeg {
			maxNeg = neg
		}
		r.Score = neg
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	if maxNeg > 0 {
		for i := range results {
			results[i].Score = results[i].Score / maxNeg
		}
	}
	return results, nil
}

// TopBM25Raw returns the unnormalised bm25() value of the single best
// match for query, sign-flipped so that higher is better. It is used by
// the strong-signal probe, which must compare
// against a configured threshold in the engine's own units, not the
// [0,1]-normalised score used downstream.
func (s *Store) TopBM25Raw(query string) (float64, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, false, nil
	}
	var raw float64
	err := s.db.QueryRow(`
		SELECT bm25(documents_fts) FROM documents_fts f
		JOIN documents d ON d.id = f.rowid
		WHERE documents_fts MATCH ? AND d.active = 1
		ORDER BY bm25(documents_fts) LIMIT 1
	`, escapeFTSQuery(query)).Scan(&raw)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 0, false, nil
		}
		return 0, false, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return -raw, true, nil
}

// escapeFTSQuery wraps the query as an FTS5 phrase so punctuation in user
// text (including injection-style payloads) can never be
// interpreted as FTS5 query syntax.
func escapeFTSQuery(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}

// LogSearch appends a row to the append-only search_history log.
func (s *Store) LogSearch(command, query string, resultCount int, indexName string) error {
	_, err := s.db.Exec(
		`INSERT INTO search_history(ts, command, query, result_count, index_name) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(timeFormat), command, query, resultCount, indexName,
	)
	if err != nil {
		return qmderr.External(qmderr.CodeSQLEngine, err)
	}
	return nil
}
