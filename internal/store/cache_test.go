package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReadThroughAndTTL(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.CacheGet("missing", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CachePut("k1", "rerank", []byte(`{"x":1}`)))

	got, ok, err := s.CacheGet("k1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"x":1}`), got)

	// A negative TTL makes every entry stale.
	_, ok, err = s.CacheGet("k1", -time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictCacheRemovesStaleEntries(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CachePut("old", "rerank", []byte("a")))

	n, err := s.EvictCache(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := s.CacheGet("old", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPathContextLongestPrefixWins(t *testing.T) {
	s := openTestStore(t)
	_, err := s.db.Exec(`INSERT INTO path_contexts(prefix, context) VALUES ('notes/', 'all notes'), ('notes/meetings/', 'meeting minutes')`)
	require.NoError(t, err)

	ctx, ok, err := s.PathContext("notes/meetings/standup.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "meeting minutes", ctx)

	ctx, ok, err = s.PathContext("notes/todo.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "all notes", ctx)

	_, ok, err = s.PathContext("elsewhere/x.md")
	require.NoError(t, err)
	assert.False(t, ok)
}
