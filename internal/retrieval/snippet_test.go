package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWindowBoundsWhenQueryOccurs(t *testing.T) {
	body := strings.Repeat("filler ", 200) + "findme " + strings.Repeat("more filler ", 200)
	snippet, line := Extract(body, "findme", 300)

	require.NotEmpty(t, snippet)
	assert.LessOrEqual(t, len(snippet), 300+len("……"))
	assert.Contains(t, strings.ToLower(snippet), "findme")
	assert.Equal(t, 1, line)
}

func TestExtractFallsBackToFirstWindowWhenNoMatch(t *testing.T) {
	body := strings.Repeat("x", 500)
	snippet, line := Extract(body, "absent-token", 300)

	assert.True(t, strings.HasPrefix(snippet, strings.Repeat("x", 10)))
	assert.LessOrEqual(t, len(snippet), 300+len("…"))
	assert.Equal(t, 1, line)
}

func TestExtractShortBodyReturnedWhole(t *testing.T) {
	body := "short body with findme in it"
	snippet, _ := Extract(body, "findme", 300)
	assert.Equal(t, body, snippet)
}

func TestExtractRecordsStartingLine(t *testing.T) {
	lines := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		lines = append(lines, strings.Repeat("pad ", 20))
	}
	// Needle sits far enough from both line edges that the ±half-window
	// slice stays on this same line, so the recorded start line is exact.
	lines[40] = strings.Repeat("pad ", 10) + "needle" + strings.Repeat("pad ", 10)
	body := strings.Join(lines, "\n")

	_, line := Extract(body, "needle", 40)
	assert.Equal(t, 41, line)
}

func TestExtractIsCaseInsensitive(t *testing.T) {
	body := "Some text with FindMe inside it and more words to pad the body length out"
	snippet, _ := Extract(body, "findme", 300)
	assert.Contains(t, strings.ToLower(snippet), "findme")
}
