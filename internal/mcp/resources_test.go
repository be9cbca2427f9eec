package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeResourceURIPreservesSlashes(t *testing.T) {
	tests := []struct {
		displayPath string
		want        string
	}{
		{"notes/meeting.md", "qmd://notes/meeting.md"},
		{"a b/c d.md", "qmd://a%20b/c%20d.md"},
		{"plain.md", "qmd://plain.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeResourceURI(tt.displayPath))
	}
}

func TestDecodeResourcePathRoundTrip(t *testing.T) {
	for _, p := range []string{"notes/meeting.md", "a b/c d.md", "日本語/ノート.md"} {
		decoded, ok := decodeResourcePath(encodeResourceURI(p))
		require.True(t, ok, "path %q", p)
		assert.Equal(t, p, decoded)
	}
}

func TestDecodeResourcePathRejectsForeignScheme(t *testing.T) {
	_, ok := decodeResourcePath("file:///etc/passwd")
	assert.False(t, ok)
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "text/markdown", mimeTypeFor("a.md"))
	assert.Equal(t, "text/markdown", mimeTypeFor("a.markdown"))
	assert.Equal(t, "text/plain", mimeTypeFor("a.txt"))
	assert.Equal(t, "text/plain", mimeTypeFor("a"))
}
