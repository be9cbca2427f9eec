package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpansionResponseFullPayload(t *testing.T) {
	raw := `Here you go: {"lex":"meeting notes agenda","vec":"what was discussed in the meeting","hyde":"The meeting covered the quarterly roadmap."} hope that helps`

	out, ok := parseExpansionResponse(raw, "meeting notes", true)
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, QueryLex, out[0].Type)
	assert.Equal(t, QueryVec, out[1].Type)
	assert.Equal(t, QueryHyde, out[2].Type)
}

func TestParseExpansionResponseDropsLexWhenNotWanted(t *testing.T) {
	raw := `{"lex":"keyword stuff","vec":"dense query"}`

	out, ok := parseExpansionResponse(raw, "q", false)
	require.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, QueryVec, out[0].Type)
}

func TestParseExpansionResponseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "{}"} {
		_, ok := parseExpansionResponse(raw, "q", true)
		assert.False(t, ok, "raw %q", raw)
	}
}

func TestFallbackExpansionShapes(t *testing.T) {
	both := FallbackExpansion("find the notes", true)
	require.Len(t, both, 2)
	assert.Equal(t, Queryable{Type: QueryLex, Text: "find the notes"}, both[0])
	assert.Equal(t, Queryable{Type: QueryVec, Text: "find the notes"}, both[1])

	vecOnly := FallbackExpansion("find the notes", false)
	require.Len(t, vecOnly, 1)
	assert.Equal(t, QueryVec, vecOnly[0].Type)
}

func TestFormatForEmbeddingRoles(t *testing.T) {
	assert.Equal(t, "search_query: hello", formatForEmbedding("hello", EmbedOpts{IsQuery: true}))
	assert.Equal(t, "search_document: Title\n\nbody", formatForEmbedding("body", EmbedOpts{Title: "Title"}))
	assert.Equal(t, "search_document: body", formatForEmbedding("body", EmbedOpts{}))
}

func TestNoOpRerankPreservesInputOrder(t *testing.T) {
	res := NoOpRerank([]RerankCandidate{{File: "a"}, {File: "b"}, {File: "c"}})
	require.Len(t, res.Results, 3)
	assert.Equal(t, "a", res.Results[0].File)
	assert.Equal(t, "b", res.Results[1].File)
	assert.Equal(t, "c", res.Results[2].File)
	for i := 1; i < len(res.Results); i++ {
		assert.Greater(t, res.Results[i-1].Score, res.Results[i].Score)
	}
}
