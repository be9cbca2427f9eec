// Package runtime implements the Model Runtime: embedding, reranking, and
// query expansion behind a provider-agnostic interface, plus the
// reference-counted session manager that bounds concurrent model use.
package runtime

import "context"

// EmbedOpts controls role-aware text formatting before encoding.
type EmbedOpts struct {
	IsQuery bool
	Title   string
}

// EmbedResult is returned by a successful Embed call.
type EmbedResult struct {
	Vector []float32
	Model  string
}

// RerankCandidate is one document offered to Rerank.
type RerankCandidate struct {
	File string
	Text string
}

// RerankHit is one scored result from Rerank, sorted by Score descending.
type RerankHit struct {
	File  string
	Score float64
	Index int
}

// RerankResult is the output of a Rerank call.
type RerankResult struct {
	Results []RerankHit
	Model   string
}

// QueryableType names the sub-search channel a Queryable expands into.
type QueryableType string

const (
	QueryLex  QueryableType = "lex"
	QueryVec  QueryableType = "vec"
	QueryHyde QueryableType = "hyde"
)

// Queryable is one expanded sub-query.
type Queryable struct {
	Type QueryableType
	Text string
}

// ExpandOpts controls query expansion.
type ExpandOpts struct {
	Context       string
	IncludeLexical bool
}

// Provider is the polymorphic model-runtime capability set: embed,
// embed_batch, generate, expand_query, rerank, model_exists, dispose.
// Embed/EmbedBatch/Rerank/ExpandQuery never panic; on a recoverable
// failure they return a zero value and a non-nil error, which callers log
// and treat as "no result" rather than propagate as a fatal condition.
type Provider interface {
	Embed(ctx context.Context, text string, opts EmbedOpts) (EmbedResult, error)
	EmbedBatch(ctx context.Context, texts []string, opts EmbedOpts) ([]*EmbedResult, error)
	Generate(ctx context.Context, prompt string) (string, error)
	ExpandQuery(ctx context.Context, text string, opts ExpandOpts) ([]Queryable, error)
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) (RerankResult, error)
	ModelExists(ctx context.Context, model string) bool
	Dispose(ctx context.Context) error
}

// FallbackExpansion is the deterministic fallback when ExpandQuery
// fails: lex+vec, or vec-only when lexical sub-queries are
// not wanted.
func FallbackExpansion(text string, includeLexical bool) []Queryable {
	if !includeLexical {
		return []Queryable{{Type: QueryVec, Text: text}}
	}
	return []Queryable{{Type: QueryLex, Text: text}, {Type: QueryVec, Text: text}}
}
