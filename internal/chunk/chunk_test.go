package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortBodyIsSingleChunk(t *testing.T) {
	body := "# Title\n\nSome short markdown body."
	chunks := Split(body, DefaultConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 0, chunks[0].Pos)
	assert.Equal(t, body, chunks[0].Text)
}

func TestSplitEmptyBodyYieldsNoChunks(t *testing.T) {
	assert.Empty(t, Split("", DefaultConfig()))
}

func TestSplitLongBodyOverlaps(t *testing.T) {
	body := strings.Repeat("a", 2500)
	cfg := Config{Size: 1000, Overlap: 200}
	chunks := Split(body, cfg)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
	}
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Pos, chunks[i-1].Pos, "positions must strictly increase")
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, body[last.Pos:], last.Text)
}

func TestSplitRealignsToRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 998) + "日本語" + strings.Repeat("b", 500)
	cfg := Config{Size: 1000, Overlap: 100}
	chunks := Split(body, cfg)

	for _, c := range chunks {
		assert.True(t, strings.ToValidUTF8(c.Text, "") == c.Text, "chunk text must be valid UTF-8")
	}
}
