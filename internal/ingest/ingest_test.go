package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmd-dev/qmd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunIndexesNewFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# Hi\n\nhello world"), 0o644))

	s := openTestStore(t)
	_, counts, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Indexed)
	assert.Equal(t, 0, counts.Updated)
	assert.Equal(t, 1, counts.NeedsEmbedding)

	results, err := s.SearchFTS("hello", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRunReingestUnchanged(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# Hi\n\nhello world"), 0o644))

	s := openTestStore(t)
	_, _, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)

	_, counts, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)
	assert.Equal(t, Counts{Unchanged: 1, NeedsEmbedding: 1}, counts)
}

func TestRunEditedFileIsUpdated(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hi\n\nhello world"), 0o644))

	s := openTestStore(t)
	_, _, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("# Hi\n\nworld of widgets"), 0o644))
	_, counts, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Updated)

	empty, err := s.SearchFTS("hello", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	hit, err := s.SearchFTS("widgets", 10, nil)
	require.NoError(t, err)
	require.Len(t, hit, 1)
}

func TestRunRemovedFileIsDeactivated(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hi\n\nhello world"), 0o644))

	s := openTestStore(t)
	_, _, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, counts, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Removed)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)
}

func TestRunSkipsHiddenAndSkipListDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.md"), []byte("nope"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "y.md"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.md"), []byte("# OK\n\nbody"), 0o644))

	s := openTestStore(t)
	_, counts, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Indexed)
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, string, error) {
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)*0.01
	}
	return vec, "fake-model", nil
}

func TestEmbedDiscoversDimensionAndPersistsVectors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# Hi\n\nhello world"), 0o644))

	s := openTestStore(t)
	_, _, err := Run(context.Background(), s, root, "*.md")
	require.NoError(t, err)

	counts, err := Embed(context.Background(), s, fakeEmbedder{dim: 8}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Embedded)
	assert.GreaterOrEqual(t, counts.Chunks, 1)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.NeedsEmbedding)
	assert.True(t, st.HasVectorIndex)
}
