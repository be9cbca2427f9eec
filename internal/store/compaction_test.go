package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orphanedStore returns a store holding exactly one orphaned vector hash.
func orphanedStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)

	cid, err := s.PutCollection("/notes", "*.md")
	require.NoError(t, err)
	_, doc, err := s.UpsertDocument(cid, "gone.md", "soon to vanish", "T")
	require.NoError(t, err)

	_, err = s.EnsureVectorIndex(2)
	require.NoError(t, err)
	require.NoError(t, s.InsertVectors(doc.Hash, []ChunkVector{{Seq: 0, Pos: 0, Vector: []float32{1, 0}}}, "m"))

	_, err = s.DeactivateMissing(cid, map[string]bool{})
	require.NoError(t, err)
	return s
}

func TestOrphanStats(t *testing.T) {
	s := orphanedStore(t)

	orphans, total, ratio, err := s.OrphanStats()
	require.NoError(t, err)
	assert.Equal(t, 1, orphans)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1.0, ratio)
}

func TestOrphanStatsEmptyIndex(t *testing.T) {
	s := openTestStore(t)

	orphans, total, ratio, err := s.OrphanStats()
	require.NoError(t, err)
	assert.Zero(t, orphans)
	assert.Zero(t, total)
	assert.Zero(t, ratio)
}

func TestCompactorSweepsOrphansOnceIdle(t *testing.T) {
	s := orphanedStore(t)

	c := NewCompactor(s, CompactionPolicy{
		Enabled:         true,
		OrphanThreshold: 0.1,
		MinOrphanCount:  1,
		IdleTimeout:     10 * time.Millisecond,
		Cooldown:        time.Millisecond,
	}, nil)
	t.Cleanup(c.Stop)

	c.OnSearchComplete()
	require.Eventually(t, func() bool { return len(s.vec.keys()) == 0 }, time.Second, 5*time.Millisecond)

	orphans, _, _, err := s.OrphanStats()
	require.NoError(t, err)
	assert.Zero(t, orphans)
}

func TestCompactorDisabledNeverSweeps(t *testing.T) {
	s := orphanedStore(t)

	c := NewCompactor(s, CompactionPolicy{
		Enabled:         false,
		OrphanThreshold: 0.1,
		MinOrphanCount:  1,
		IdleTimeout:     5 * time.Millisecond,
		Cooldown:        time.Millisecond,
	}, nil)
	t.Cleanup(c.Stop)

	c.OnSearchComplete()
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.vec.keys(), 1)
}

func TestCompactorRespectsMinOrphanCount(t *testing.T) {
	s := orphanedStore(t)

	c := NewCompactor(s, CompactionPolicy{
		Enabled:         true,
		OrphanThreshold: 0.1,
		MinOrphanCount:  5, // only one orphan exists
		IdleTimeout:     5 * time.Millisecond,
		Cooldown:        time.Millisecond,
	}, nil)
	t.Cleanup(c.Stop)

	c.OnSearchComplete()
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.vec.keys(), 1)
}

func TestCompactorStopCancelsPendingSweep(t *testing.T) {
	s := orphanedStore(t)

	c := NewCompactor(s, CompactionPolicy{
		Enabled:         true,
		OrphanThreshold: 0.1,
		MinOrphanCount:  1,
		IdleTimeout:     20 * time.Millisecond,
		Cooldown:        time.Millisecond,
	}, nil)

	c.OnSearchComplete()
	c.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, s.vec.keys(), 1)
}
