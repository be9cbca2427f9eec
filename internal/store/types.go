// Package store implements the single embedded SQL database per index:
// collections, documents, content, content vectors, the FTS5 shadow, the
// companion vector index, the provider cache, and search history.
package store

import (
	"fmt"
	"time"
)

// UpsertOutcome is the result of upsert_document.
type UpsertOutcome string

const (
	Indexed   UpsertOutcome = "Indexed"
	Updated   UpsertOutcome = "Updated"
	Unchanged UpsertOutcome = "Unchanged"
	Rejected  UpsertOutcome = "Rejected"
)

// Collection is a named root directory plus a glob pattern.
type Collection struct {
	ID      int64
	Root    string
	Glob    string
	Context string
}

// Document is one record per logical file within a collection.
type Document struct {
	ID          int64
	CollectionID int64
	Filepath    string
	DisplayPath string
	Title       string
	Hash        string
	Body        string
	Active      bool
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// FTSResult is one row returned by SearchFTS.
type FTSResult struct {
	DocID       int64
	Filepath    string
	DisplayPath string
	Title       string
	Body        string
	Score       float64 // normalised BM25 in [0,1]
	Source      string  // always "fts"
}

// VecResult is one row returned by SearchVec.
type VecResult struct {
	DocID       int64
	Filepath    string
	DisplayPath string
	Title       string
	Body        string
	Score       float64 // cosine similarity mapped to [0,1]
	Source      string  // always "vec"
	ChunkSeq    int
	ChunkPos    int
}

// CollectionStatus summarises one collection for Status().
type CollectionStatus struct {
	Name        string
	Path        string
	Pattern     string
	Documents   int
	LastUpdated time.Time
}

// Status is the shape returned by Store.Status().
type Status struct {
	Total           int
	NeedsEmbedding  int
	HasVectorIndex  bool
	Collections     []CollectionStatus
}

// FindResult is returned by FindDocument.
type FindResult struct {
	Found        bool
	Document     *Document
	SimilarPaths []string
}

// FindMatch is one hit from FindDocuments.
type FindMatch struct {
	Document *Document
}

// FindSkip records a matched-but-oversize file.
type FindSkip struct {
	Filepath string
	Reason   string
}

// ErrDimensionMismatch is returned when a vector's dimension does not
// match the vector index's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("store: vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
