package retrieval

import "sort"

// Fuse implements Reciprocal Rank Fusion over lists,
// one weight per list (the first sub-query's list conventionally carries
// weight 2.0, the rest 1.0 — callers decide). For each file appearing at
// 1-based rank r in list k, `weight_k / (K + r)` is accumulated into that
// file's total score; a top-rank bonus is then added (+bonus1 if the
// file was ever rank 1, +bonus23 if ever rank 2 or 3).
//
// Fuse is order-independent in the set of lists: permuting lists
// and their paired weights together produces the same fused scores,
// because each list only contributes via its own ranks. Ties in the
// returned slice are broken by total score descending, then by the
// maximum per-list score descending, then
// by file name ascending for full determinism.
func Fuse(lists [][]RankedItem, weights []float64, k int, bonus1, bonus23 float64) []Fused {
	if k <= 0 {
		k = 60
	}

	type acc struct {
		score    float64
		topRank  int // 0 = never seen
		maxScore float64
	}
	totals := map[string]*acc{}

	for li, list := range lists {
		w := 1.0
		if li < len(weights) {
			w = weights[li]
		}
		for i, item := range list {
			rank := i + 1
			a, ok := totals[item.File]
			if !ok {
				a = &acc{topRank: rank}
				totals[item.File] = a
			}
			a.score += w / float64(k+rank)
			if a.topRank == 0 || rank < a.topRank {
				a.topRank = rank
			}
			if item.Score > a.maxScore {
				a.maxScore = item.Score
			}
		}
	}

	out := make([]Fused, 0, len(totals))
	for file, a := range totals {
		bonus := topRankBonus(a.topRank, bonus1, bonus23)
		out = append(out, Fused{File: file, Score: a.score + bonus, TopRank: a.topRank})
	}

	maxScores := make(map[string]float64, len(totals))
	for file, a := range totals {
		maxScores[file] = a.maxScore
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if maxScores[out[i].File] != maxScores[out[j].File] {
			return maxScores[out[i].File] > maxScores[out[j].File]
		}
		return out[i].File < out[j].File
	})
	return out
}

// topRankBonus returns exactly bonus1 at rank 1, bonus23 at
// rank 2 or 3, zero at rank 4+ or never-seen (topRank == 0 is unreachable
// for any file present in the map, but is handled defensively).
func topRankBonus(topRank int, bonus1, bonus23 float64) float64 {
	switch {
	case topRank == 1:
		return bonus1
	case topRank == 2 || topRank == 3:
		return bonus23
	default:
		return 0
	}
}

// Descriptor names one list passed to BuildTrace, so the trace can label
// each contribution by its originating sub-search.
type Descriptor struct {
	Source string
}

// BuildTrace performs the same accumulation as Fuse, but returns the
// full per-file contribution breakdown for offline scoring analysis.
// BuildTrace and Fuse agree on total scores file-by-file; both are
// driven by the same per-list/per-rank formula, so this holds by
// construction as long as k and the bonus constants match.
func BuildTrace(lists [][]RankedItem, weights []float64, descriptors []Descriptor, k int, bonus1, bonus23 float64) map[string]Trace {
	if k <= 0 {
		k = 60
	}

	traces := map[string]*Trace{}

	for li, list := range lists {
		w := 1.0
		if li < len(weights) {
			w = weights[li]
		}
		source := ""
		if li < len(descriptors) {
			source = descriptors[li].Source
		}
		for i, item := range list {
			rank := i + 1
			term := w / float64(k+rank)

			t, ok := traces[item.File]
			if !ok {
				t = &Trace{}
				traces[item.File] = t
			}
			t.TotalScore += term
			if t.TopRank == 0 || rank < t.TopRank {
				t.TopRank = rank
			}
			t.Contributions = append(t.Contributions, Contribution{
				Source: source, Weight: w, Rank: rank, RRFTerm: term,
			})
		}
	}

	out := make(map[string]Trace, len(traces))
	for file, t := range traces {
		t.TopRankBonus = topRankBonus(t.TopRank, bonus1, bonus23)
		t.TotalScore += t.TopRankBonus
		out[file] = *t
	}
	return out
}
