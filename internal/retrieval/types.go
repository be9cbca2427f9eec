// Package retrieval implements the query pipeline: query
// normalisation, a strong-signal probe, query expansion, parallel
// lexical/vector sub-searches, RRF fusion, cross-encoder reranking, and
// snippet extraction.
package retrieval

import (
	"strings"

	"github.com/qmd-dev/qmd/internal/runtime"
)

// SubQuery is one `{type, query}` entry of a multi-sub-search request
// (the MCP `query` tool's shape), or one member of the expansion the
// pipeline builds internally from a bare string.
type SubQuery struct {
	Type  runtime.QueryableType
	Query string
}

// Request is one normalised retrieval call. Text
// is the caller's query string, used for the strong-signal probe and
// snippet centring regardless of which expansion path is taken.
//
// Exactly one of three expansion paths applies, checked in this order:
//  1. Searches, when non-empty, is an explicit multi-sub-search list (the
//     MCP `query` tool's shape); it bypasses LLM expansion and the
//     strong-signal probe entirely.
//  2. Keywords/Concepts/Passage, the structured-query shape's caller
//     expansions; HasExpansions reports whether any is set. When so, they
//     build sub-queries directly (keywords -> lex, concepts -> vec,
//     passage -> hyde) and also bypass the strong-signal probe.
//  3. Otherwise the pipeline runs the strong-signal probe and, absent a
//     strong signal, calls Model Runtime expand_query.
//
// Intent, when set, disables the strong-signal shortcut even when
// neither Searches nor a caller expansion is present.
type Request struct {
	Text        string
	Searches    []SubQuery
	Keywords    []string
	Concepts    []string
	Passage     string
	Intent      string
	Limit       int
	MinScore    float64
	Collections []string
}

// HasExpansions reports whether the caller supplied expansions: true iff
// at least one expansion field is non-empty after normalisation (empty
// arrays and an empty passage are stripped by Normalize).
func (r Request) HasExpansions() bool {
	return len(r.Keywords) > 0 || len(r.Concepts) > 0 || r.Passage != ""
}

// Normalize applies the normalisation rules for the
// structured-query shape: empty keyword/concept entries and an empty
// passage are stripped.
func Normalize(r Request) Request {
	r.Keywords = stripEmpty(r.Keywords)
	r.Concepts = stripEmpty(r.Concepts)
	r.Passage = strings.TrimSpace(r.Passage)
	return r
}

func stripEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Result is one scored, snippeted document returned by the pipeline.
type Result struct {
	DocID       int64
	File        string
	DisplayPath string
	Title       string
	Score       float64
	Snippet     string
	SnippetLine int
	Context     string
}

// Contribution is one ranked-list entry behind a fused file's score, in
// the order its originating list was passed to Fuse.
type Contribution struct {
	Source   string
	Weight   float64
	Rank     int
	RRFTerm  float64
}

// Trace is one file's fused-score breakdown, as returned by BuildTrace.
type Trace struct {
	TotalScore    float64
	TopRank       int
	TopRankBonus  float64
	Contributions []Contribution
}

// RankedItem is one entry of a lexical or vector result list handed to
// Fuse, already sorted best-first. File is the dedup key (a display path); Score is
// that list's own relevance score, used only for RRF's tie-break on
// equal fused scores.
type RankedItem struct {
	File  string
	Score float64
}

// Fused is one file's RRF-fused score prior to reranking.
type Fused struct {
	File    string
	Score   float64
	TopRank int
}
