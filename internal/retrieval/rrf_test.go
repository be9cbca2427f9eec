package retrieval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseTopRankBonusThresholds(t *testing.T) {
	lists := [][]RankedItem{
		{{File: "A", Score: 1}, {File: "B", Score: 0.9}, {File: "C", Score: 0.8}, {File: "D", Score: 0.7}},
		{{File: "B", Score: 1}, {File: "A", Score: 0.9}, {File: "C", Score: 0.8}},
	}
	weights := []float64{1, 1}

	fused := Fuse(lists, weights, 60, 0.05, 0.02)
	byFile := map[string]Fused{}
	for _, f := range fused {
		byFile[f.File] = f
	}

	bonusOf := func(file string) float64 {
		return topRankBonus(byFile[file].TopRank, 0.05, 0.02)
	}

	assert.Equal(t, 0.05, bonusOf("A"))
	assert.Equal(t, 0.05, bonusOf("B"))
	assert.Equal(t, 0.02, bonusOf("C"))
	assert.Equal(t, 0.0, bonusOf("D"))
}

func TestFuseOrderInvariance(t *testing.T) {
	lists := [][]RankedItem{
		{{File: "A"}, {File: "B"}, {File: "C"}},
		{{File: "B"}, {File: "C"}, {File: "A"}},
		{{File: "C"}, {File: "A"}, {File: "B"}},
	}
	weights := []float64{2.0, 1.0, 1.0}

	base := Fuse(lists, weights, 60, 0.05, 0.02)
	baseScores := scoresByFile(base)

	perm := []int{2, 0, 1}
	permLists := make([][]RankedItem, len(lists))
	permWeights := make([]float64, len(weights))
	for i, p := range perm {
		permLists[i] = lists[p]
		permWeights[i] = weights[p]
	}

	permuted := Fuse(permLists, permWeights, 60, 0.05, 0.02)
	permScores := scoresByFile(permuted)

	require.Equal(t, len(baseScores), len(permScores))
	for file, score := range baseScores {
		assert.InDelta(t, score, permScores[file], 1e-9, "file %s", file)
	}
}

func TestFuseIsDeterministicUnderShuffledListOrder(t *testing.T) {
	lists := [][]RankedItem{
		{{File: "A"}, {File: "B"}, {File: "C"}, {File: "D"}, {File: "E"}},
		{{File: "E"}, {File: "D"}, {File: "A"}},
	}
	weights := []float64{2.0, 1.0}

	first := Fuse(lists, weights, 60, 0.05, 0.02)

	rnd := rand.New(rand.NewSource(1))
	idx := []int{0, 1}
	rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	reordered := [][]RankedItem{lists[idx[0]], lists[idx[1]]}
	reorderedWeights := []float64{weights[idx[0]], weights[idx[1]]}
	second := Fuse(reordered, reorderedWeights, 60, 0.05, 0.02)

	assert.Equal(t, scoresByFile(first), scoresByFile(second))
}

func TestBuildTraceParityWithFuse(t *testing.T) {
	lists := [][]RankedItem{
		{{File: "A"}, {File: "B"}, {File: "C"}},
		{{File: "B"}, {File: "A"}},
	}
	weights := []float64{2.0, 1.0}
	descriptors := []Descriptor{{Source: "lex"}, {Source: "vec"}}

	fused := Fuse(lists, weights, 60, 0.05, 0.02)
	traces := BuildTrace(lists, weights, descriptors, 60, 0.05, 0.02)

	require.Len(t, traces, 3)
	for _, f := range fused {
		tr, ok := traces[f.File]
		require.True(t, ok, "missing trace for %s", f.File)
		assert.InDelta(t, f.Score, tr.TotalScore, 1e-9, "file %s", f.File)
	}
}

func TestBuildTraceContributionsOrderedLikeInputLists(t *testing.T) {
	lists := [][]RankedItem{
		{{File: "A"}},
		{{File: "A"}},
		{{File: "A"}},
	}
	weights := []float64{2.0, 1.0, 1.0}
	descriptors := []Descriptor{{Source: "lex"}, {Source: "vec"}, {Source: "hyde"}}

	traces := BuildTrace(lists, weights, descriptors, 60, 0.05, 0.02)
	tr := traces["A"]
	require.Len(t, tr.Contributions, 3)
	assert.Equal(t, "lex", tr.Contributions[0].Source)
	assert.Equal(t, "vec", tr.Contributions[1].Source)
	assert.Equal(t, "hyde", tr.Contributions[2].Source)
}

func scoresByFile(fused []Fused) map[string]float64 {
	out := make(map[string]float64, len(fused))
	for _, f := range fused {
		out[f.File] = f.Score
	}
	return out
}
