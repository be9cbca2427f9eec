package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// ListActiveDocuments returns every active document's metadata (no body),
// for MCP `qmd://` resource enumeration.
func (s *Store) ListActiveDocuments() ([]*Document, error) {
	rows, err := s.db.Query(`
		SELECT id, collection_id, filepath, display_path, title, hash, active, created_at, modified_at
		FROM documents WHERE active = 1 ORDER BY display_path
	`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		var createdAt, modifiedAt string
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.Filepath, &d.DisplayPath, &d.Title, &d.Hash, &d.Active, &createdAt, &modifiedAt); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		d.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		d.ModifiedAt, _ = time.Parse(timeFormat, modifiedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ResolveCollections maps collection names or root paths to their IDs,
// for scoping SearchFTS/SearchVec to a caller-supplied subset (the
// `query`/`search` `collections` filter). Unknown names are
// skipped rather than erroring, matching the rest of the store's
// tolerant lookup style.
func (s *Store) ResolveCollections(names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT id, root_path FROM collections`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var ids []int64
	for rows.Next() {
		var id int64
		var root string
		if err := rows.Scan(&id, &root); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		if wanted[root] || wanted[filepath.Base(root)] {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// GetBody returns the body of docOrHash, optionally sliced to a 1-indexed
// line range: [fromLine, fromLine+maxLines).
func (s *Store) GetBody(docOrHash string, fromLine, maxLines int) (string, error) {
	body, err := s.bodyFor(docOrHash)
	if err != nil {
		return "", err
	}
	if fromLine <= 0 && maxLines <= 0 {
		return body, nil
	}
	lines := strings.Split(body, "\n")
	start := fromLine - 1
	if start < 0 {
		start = 0
	}
	if start >= len(lines) {
		return "", nil
	}
	end := len(lines)
	if maxLines > 0 && start+maxLines < end {
		end = start + maxLines
	}
	return strings.Join(lines[start:end], "\n"), nil
}

func (s *Store) bodyFor(docOrHash string) (string, error) {
	if strings.HasPrefix(docOrHash, "#") {
		prefix := strings.TrimPrefix(docOrHash, "#")
		var body string
		err := s.db.QueryRow(`SELECT body FROM content WHERE hash LIKE ? || '%' LIMIT 1`, prefix).Scan(&body)
		if err == sql.ErrNoRows {
			return "", qmderr.Usage(qmderr.CodeUnknownDocument, "no document with that content hash")
		}
		if err != nil {
			return "", qmderr.External(qmderr.CodeSQLEngine, err)
		}
		return body, nil
	}

	if id, err := strconv.ParseInt(docOrHash, 10, 64); err == nil {
		var body string
		err := s.db.QueryRow(`SELECT c.body FROM documents d JOIN content c ON c.hash = d.hash WHERE d.id = ?`, id).Scan(&body)
		if err == sql.ErrNoRows {
			return "", qmderr.Usage(qmderr.CodeUnknownDocument, "no document with that id")
		}
		if err != nil {
			return "", qmderr.External(qmderr.CodeSQLEngine, err)
		}
		return body, nil
	}

	doc, err := s.lookupByPath(docOrHash)
	if err != nil {
		return "", err
	}
	return doc.Body, nil
}

// FindDocument resolves a path or doc id to a document:
// `#<hash>` by short content-hash prefix, else exact path, else suffix
// match; on miss, up to 5 edit-distance-nearest similar paths.
func (s *Store) FindDocument(pathOrDocID string, includeBody bool) (*FindResult, error) {
	var doc *Document
	var err error
	if prefix, ok := strings.CutPrefix(pathOrDocID, "#"); ok {
		doc, err = s.scanDocument(`SELECT d.id, d.collection_id, d.filepath, d.display_path, d.title, d.hash, c.body, d.active, d.created_at, d.modified_at
		FROM documents d JOIN content c ON c.hash = d.hash WHERE d.hash LIKE ? || '%' AND d.active = 1 LIMIT 1`, prefix)
	} else {
		doc, err = s.lookupByPath(pathOrDocID)
	}
	if err == nil {
		if !includeBody {
			doc.Body = ""
		}
		return &FindResult{Found: true, Document: doc}, nil
	}
	if qerr, ok := err.(*qmderr.Error); !ok || qerr.Kind != qmderr.KindUsage {
		return nil, err
	}

	similar, serr := s.similarPaths(pathOrDocID, 5)
	if serr != nil {
		return nil, serr
	}
	return &FindResult{Found: false, SimilarPaths: similar}, nil
}

func (s *Store) lookupByPath(path string) (*Document, error) {
	doc, err := s.scanDocument(`SELECT d.id, d.collection_id, d.filepath, d.display_path, d.title, d.hash, c.body, d.active, d.created_at, d.modified_at
		FROM documents d JOIN content c ON c.hash = d.hash WHERE d.filepath = ? AND d.active = 1`, path)
	if err == nil {
		return doc, nil
	}

	rows, qerr := s.db.Query(`SELECT d.id, d.collection_id, d.filepath, d.display_path, d.title, d.hash, c.body, d.active, d.created_at, d.modified_at
		FROM documents d JOIN content c ON c.hash = d.hash WHERE d.active = 1`)
	if qerr != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, qerr)
	}
	defer rows.Close()

	var match *Document
	for rows.Next() {
		d, serr := scanRow(rows)
		if serr != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, serr)
		}
		if strings.HasSuffix(d.Filepath, "/"+path) || d.Filepath == path || d.DisplayPath == path {
			match = d
			break
		}
	}
	if match == nil {
		return nil, qmderr.Usage(qmderr.CodeUnknownDocument, fmt.Sprintf("no document matching %q", path))
	}
	return match, nil
}

func (s *Store) scanDocument(query string, args ...any) (*Document, error) {
	row := s.db.QueryRow(query, args...)
	var d Document
	var createdAt, modifiedAt string
	var active int
	if err := row.Scan(&d.ID, &d.CollectionID, &d.Filepath, &d.DisplayPath, &d.Title, &d.Hash, &d.Body, &active, &createdAt, &modifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, qmderr.Usage(qmderr.CodeUnknownDocument, "document not found")
		}
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	d.Active = active == 1
	d.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	d.ModifiedAt, _ = time.Parse(timeFormat, modifiedAt)
	return &d, nil
}

func scanRow(rows *sql.Rows) (*Document, error) {
	var d Document
	var createdAt, modifiedAt string
	var active int
	if err := rows.Scan(&d.ID, &d.CollectionID, &d.Filepath, &d.DisplayPath, &d.Title, &d.Hash, &d.Body, &active, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	d.Active = active == 1
	d.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	d.ModifiedAt, _ = time.Parse(timeFormat, modifiedAt)
	return &d, nil
}

func (s *Store) similarPaths(target string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT filepath FROM documents WHERE active = 1`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()

	type scored struct {
		path string
		dist int
	}
	var all []scored
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		all = append(all, scored{p, editDistance(target, p)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, len(all))
	for i, a := range all {
		out[i] = a.path
	}
	return out, rows.Err()
}

// editDistance computes the classic Levenshtein distance.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// FindDocuments resolves a glob or comma-separated list of paths to the
// matching active documents; a match whose body exceeds maxBytes is
// reported as skipped, never silently truncated.
func (s *Store) FindDocuments(globOrCSV string, includeBody bool, maxBytes int) ([]FindMatch, []FindSkip, []string) {
	var patterns []string
	if strings.Contains(globOrCSV, ",") {
		for _, p := range strings.Split(globOrCSV, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
	} else {
		patterns = []string{globOrCSV}
	}

	rows, err := s.db.Query(`SELECT d.id, d.collection_id, d.filepath, d.display_path, d.title, d.hash, c.body, d.active, d.created_at, d.modified_at
		FROM documents d JOIN content c ON c.hash = d.hash WHERE d.active = 1`)
	if err != nil {
		return nil, nil, []string{err.Error()}
	}
	defer rows.Close()

	var matches []FindMatch
	var skips []FindSkip
	var errs []string
	for rows.Next() {
		d, serr := scanRow(rows)
		if serr != nil {
			errs = append(errs, serr.Error())
			continue
		}
		matchedAny := false
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, d.Filepath); ok || d.Filepath == pat || strings.HasSuffix(d.Filepath, "/"+pat) {
				matchedAny = true
				break
			}
		}
		if !matchedAny {
			continue
		}
		if maxBytes > 0 && len(d.Body) > maxBytes {
			skips = append(skips, FindSkip{Filepath: d.Filepath, Reason: fmt.Sprintf("body exceeds %d bytes", maxBytes)})
			continue
		}
		if !includeBody {
			d.Body = ""
		}
		matches = append(matches, FindMatch{Document: d})
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, err.Error())
	}
	return matches, skips, errs
}

// Status returns the structured index summary.
func (s *Store) Status() (*Status, error) {
	st := &Status{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE active = 1`).Scan(&st.Total); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT hash FROM documents WHERE active = 1
		) h WHERE NOT EXISTS (SELECT 1 FROM content_vectors v WHERE v.hash = h.hash AND v.seq = 0)
	`).Scan(&st.NeedsEmbedding); err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}

	st.HasVectorIndex = s.vec.dimension() > 0

	rows, err := s.db.Query(`
		SELECT c.root_path, c.glob_pattern, COUNT(d.id), COALESCE(MAX(d.modified_at), '')
		FROM collections c LEFT JOIN documents d ON d.collection_id = c.id AND d.active = 1
		GROUP BY c.id ORDER BY c.root_path
	`)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeSQLEngine, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs CollectionStatus
		var lastUpdated string
		if err := rows.Scan(&cs.Path, &cs.Pattern, &cs.Documents, &lastUpdated); err != nil {
			return nil, qmderr.External(qmderr.CodeSQLEngine, err)
		}
		cs.Name = filepath.Base(cs.Path)
		if lastUpdated != "" {
			cs.LastUpdated, _ = time.Parse(timeFormat, lastUpdated)
		}
		st.Collections = append(st.Collections, cs)
	}
	return st, rows.Err()
}
