package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenFreshIndexStatusIsEmpty(t *testing.T) {
	s := openTestStore(t)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)
	assert.Equal(t, 0, st.NeedsEmbedding)
	assert.False(t, st.HasVectorIndex)
	assert.Empty(t, st.Collections)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestHashContentIsDeterministic(t *testing.T) {
	assert.Equal(t, HashContent("hello"), HashContent("hello"))
	assert.NotEqual(t, HashContent("hello"), HashContent("hello "))
	assert.NotEqual(t, HashContent(""), HashContent("\x00"))
	assert.Len(t, HashContent("anything"), 64)
}

func TestPutCollectionIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	first, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	second, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.PutCollection("/notes", "*.markdown")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestUpsertDocumentOutcomes(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	outcome, doc, err := s.UpsertDocument(cid, "notes/a.md", "# A\n\nbody one", "A")
	require.NoError(t, err)
	assert.Equal(t, Indexed, outcome)
	require.NotNil(t, doc)
	firstID := doc.ID

	outcome, doc, err = s.UpsertDocument(cid, "notes/a.md", "# A\n\nbody one", "A")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, firstID, doc.ID)

	outcome, doc, err = s.UpsertDocument(cid, "notes/a.md", "# A\n\nbody two", "A")
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)
	assert.NotEqual(t, firstID, doc.ID)
}

func TestUpsertDocumentRejectsCrossCollectionDuplicate(t *testing.T) {
	s := openTestStore(t)
	c1, err := s.PutCollection("/one", "*.md")
	require.NoError(t, err)
	c2, err := s.PutCollection("/two", "*.md")
	require.NoError(t, err)

	_, _, err = s.UpsertDocument(c1, "shared/path.md", "body", "T")
	require.NoError(t, err)

	outcome, doc, err := s.UpsertDocument(c2, "shared/path.md", "other body", "T")
	require.NoError(t, err)
	assert.Equal(t, Rejected, outcome)
	assert.Nil(t, doc)

	// Rejection must not have mutated state: the original is still the
	// single active row and still searchable by its original body.
	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	hits, err := s.SearchFTS("body", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, c1, mustFindCollection(t, s, hits[0].Filepath))
}

func mustFindCollection(t *testing.T, s *Store, path string) int64 {
	t.Helper()
	res, err := s.FindDocument(path, false)
	require.NoError(t, err)
	require.True(t, res.Found)
	return res.Document.CollectionID
}

func TestActiveDisplayPathsStayUnique(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	paths := []string{
		"projects/alpha/readme.md",
		"projects/beta/readme.md",
		"archive/projects/alpha/readme.md",
	}
	for _, p := range paths {
		_, _, err := s.UpsertDocument(cid, p, "body of "+p, "T")
		require.NoError(t, err)
	}

	docs, err := s.ListActiveDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 3)

	seen := map[string]bool{}
	for _, d := range docs {
		require.NotEmpty(t, d.DisplayPath)
		assert.False(t, seen[d.DisplayPath], "duplicate display_path %q", d.DisplayPath)
		seen[d.DisplayPath] = true
	}
}

func TestDisplayPathStableAcrossEdit(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	_, doc, err := s.UpsertDocument(cid, "a/b/c.md", "v1", "T")
	require.NoError(t, err)
	original := doc.DisplayPath

	_, doc, err = s.UpsertDocument(cid, "a/b/c.md", "v2", "T")
	require.NoError(t, err)
	assert.Equal(t, original, doc.DisplayPath)
}

func TestInsertVectorsCoResidence(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, doc, err := s.UpsertDocument(cid, "a.md", "vector body", "T")
	require.NoError(t, err)

	_, err = s.EnsureVectorIndex(3)
	require.NoError(t, err)

	vectors := []ChunkVector{
		{Seq: 0, Pos: 0, Vector: []float32{1, 0, 0}},
		{Seq: 1, Pos: 800, Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, s.InsertVectors(doc.Hash, vectors, "test-model"))

	keys := s.vec.keys()
	assert.True(t, keys[vectorKey(doc.Hash, 0)])
	assert.True(t, keys[vectorKey(doc.Hash, 1)])
	assert.Len(t, keys, 2)

	report, err := s.CheckIntegrity()
	require.NoError(t, err)
	assert.Empty(t, report.PartialEmbeddings)

	require.NoError(t, s.DeleteVectors(doc.Hash))
	assert.Empty(t, s.vec.keys())

	rows, err := s.PendingEmbeddings()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, doc.Hash, rows[0].Hash)
}

func TestEnsureVectorIndexRebuildsOnDimensionChange(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, doc, err := s.UpsertDocument(cid, "a.md", "dim body", "T")
	require.NoError(t, err)

	rebuilt, err := s.EnsureVectorIndex(3)
	require.NoError(t, err)
	assert.False(t, rebuilt)
	require.NoError(t, s.InsertVectors(doc.Hash, []ChunkVector{{Seq: 0, Pos: 0, Vector: []float32{1, 0, 0}}}, "m"))

	rebuilt, err = s.EnsureVectorIndex(4)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.Empty(t, s.vec.keys())

	rows, err := s.PendingEmbeddings()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "metadata rows must be cleared so everything re-embeds")
}

func TestSearchVecFindsNearestDocument(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	_, docA, err := s.UpsertDocument(cid, "a.md", "alpha body", "A")
	require.NoError(t, err)
	_, docB, err := s.UpsertDocument(cid, "b.md", "beta body", "B")
	require.NoError(t, err)

	_, err = s.EnsureVectorIndex(2)
	require.NoError(t, err)
	require.NoError(t, s.InsertVectors(docA.Hash, []ChunkVector{{Seq: 0, Pos: 0, Vector: []float32{1, 0}}}, "m"))
	require.NoError(t, s.InsertVectors(docB.Hash, []ChunkVector{{Seq: 0, Pos: 0, Vector: []float32{0, 1}}}, "m"))

	hits, err := s.SearchVec([]float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.md", hits[0].Filepath)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestPruneOrphanVectors(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, doc, err := s.UpsertDocument(cid, "a.md", "orphan body", "T")
	require.NoError(t, err)

	_, err = s.EnsureVectorIndex(2)
	require.NoError(t, err)
	require.NoError(t, s.InsertVectors(doc.Hash, []ChunkVector{{Seq: 0, Pos: 0, Vector: []float32{1, 0}}}, "m"))

	_, err = s.DeactivateMissing(cid, map[string]bool{})
	require.NoError(t, err)

	pruned, err := s.PruneOrphanVectors()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Empty(t, s.vec.keys())
}

func TestSearchFTSSurvivesInjectionPayloads(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, _, err = s.UpsertDocument(cid, "a.md", "plain searchable body", "T")
	require.NoError(t, err)

	payloads := []string{
		`'; DROP TABLE documents; --`,
		`" OR 1=1 --`,
		`*`,
		`NEAR(`,
		`a AND b OR c NOT d"`,
	}
	for _, p := range payloads {
		_, err := s.SearchFTS(p, 10, nil)
		assert.NoError(t, err, "payload %q", p)
	}

	// The schema and data must be untouched.
	hits, err := s.SearchFTS("searchable", 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsertDocumentSurvivesInjectionPayloadBody(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	payload := `'; DROP TABLE documents; --`
	_, _, err = s.UpsertDocument(cid, payload, payload, payload)
	require.NoError(t, err)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
}

func TestGetBodyLineSlicing(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, _, err = s.UpsertDocument(cid, "lines.md", "one\ntwo\nthree\nfour\nfive", "T")
	require.NoError(t, err)

	full, err := s.GetBody("lines.md", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\nfour\nfive", full)

	slice, err := s.GetBody("lines.md", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", slice)

	tail, err := s.GetBody("lines.md", 4, 100)
	require.NoError(t, err)
	assert.Equal(t, "four\nfive", tail)

	empty, err := s.GetBody("lines.md", 99, 5)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestGetBodyByShortHashPrefix(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, doc, err := s.UpsertDocument(cid, "h.md", "hashed body", "T")
	require.NoError(t, err)

	body, err := s.GetBody("#"+doc.Hash[:8], 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hashed body", body)
}

func TestFindDocumentSuffixAndSimilar(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, _, err = s.UpsertDocument(cid, "deep/nested/meeting-notes.md", "body", "T")
	require.NoError(t, err)

	bySuffix, err := s.FindDocument("meeting-notes.md", false)
	require.NoError(t, err)
	assert.True(t, bySuffix.Found)

	miss, err := s.FindDocument("meting-notes.md", false)
	require.NoError(t, err)
	assert.False(t, miss.Found)
	require.NotEmpty(t, miss.SimilarPaths)
	assert.Equal(t, "deep/nested/meeting-notes.md", miss.SimilarPaths[0])
}

func TestFindDocumentsSkipsOversize(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, _, err = s.UpsertDocument(cid, "small.md", "tiny", "T")
	require.NoError(t, err)
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	_, _, err = s.UpsertDocument(cid, "big.md", string(big), "T")
	require.NoError(t, err)

	matches, skips, errs := s.FindDocuments("*.md", true, 1024)
	assert.Empty(t, errs)
	require.Len(t, matches, 1)
	assert.Equal(t, "small.md", matches[0].Document.Filepath)
	require.Len(t, skips, 1)
	assert.Equal(t, "big.md", skips[0].Filepath)
	assert.Contains(t, skips[0].Reason, "1024")
}

func TestSharedBodyAcrossDocumentsSharesContent(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)

	_, docA, err := s.UpsertDocument(cid, "a.md", "identical body", "A")
	require.NoError(t, err)
	_, docB, err := s.UpsertDocument(cid, "b.md", "identical body", "B")
	require.NoError(t, err)
	assert.Equal(t, docA.Hash, docB.Hash)

	// One embedding batch covers both documents.
	rows, err := s.PendingEmbeddings()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLogSearchAppends(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.LogSearch("query", "hello", 3, "default"))
	require.NoError(t, s.LogSearch("search", "world", 0, "default"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM search_history`).Scan(&count))
	assert.Equal(t, 2, count)
}
