package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/store"
)

func TestSplitPathLineSugar(t *testing.T) {
	tests := []struct {
		in       string
		wantPath string
		wantLine int
	}{
		{"notes/a.md:42", "notes/a.md", 42},
		{"notes/a.md", "notes/a.md", 0},
		{"notes/a.md:", "notes/a.md:", 0},
		{"notes/a.md:abc", "notes/a.md:abc", 0},
		{"notes/a.md:0", "notes/a.md:0", 0},
	}
	for _, tt := range tests {
		path, line := splitPathLineSugar(tt.in)
		assert.Equal(t, tt.wantPath, path, "input %q", tt.in)
		assert.Equal(t, tt.wantLine, line, "input %q", tt.in)
	}
}

func TestParseQueryableType(t *testing.T) {
	for _, valid := range []string{"lex", "vec", "hyde"} {
		_, err := parseQueryableType(valid)
		assert.NoError(t, err)
	}
	_, err := parseQueryableType("fuzzy")
	assert.Error(t, err)
}

func TestMapErrorKinds(t *testing.T) {
	assert.Nil(t, MapError(nil))

	usage := MapError(qmderr.Usage(qmderr.CodeUnknownDocument, "nope"))
	assert.Equal(t, ErrCodeInvalidParams, usage.Code)

	state := MapError(qmderr.State(qmderr.CodeFTSMismatch, "drift"))
	assert.Equal(t, ErrCodeIntegrityFailure, state.Code)

	released := MapError(qmderr.ErrSessionReleased)
	assert.Equal(t, ErrCodeSessionReleased, released.Code)

	model := MapError(qmderr.External(qmderr.CodeModelLoad, assert.AnError))
	assert.Equal(t, ErrCodeModelUnavailable, model.Code)

	// An already-shaped MCPError passes through untouched.
	orig := NewInvalidParamsError("bad input")
	assert.Same(t, orig, MapError(orig))
}

func TestMapErrorIncludesSuggestion(t *testing.T) {
	err := qmderr.Usage(qmderr.CodeUnknownDocument, "no document").WithSuggestion("did you mean notes/a.md?")
	mapped := MapError(err)
	require.Contains(t, mapped.Message, "did you mean")
}

func TestBuildInstructionsReflectsStatus(t *testing.T) {
	empty := buildInstructions(&store.Status{})
	assert.Contains(t, empty, "empty")

	partial := buildInstructions(&store.Status{Total: 12, NeedsEmbedding: 3, HasVectorIndex: true,
		Collections: []store.CollectionStatus{{Name: "notes"}}})
	assert.Contains(t, partial, "12 documents")
	assert.Contains(t, partial, "need embedding")

	noVec := buildInstructions(&store.Status{Total: 2})
	assert.Contains(t, noVec, "lexical search only")
}
