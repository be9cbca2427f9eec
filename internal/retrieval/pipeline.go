package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/qmd-dev/qmd/internal/config"
	"github.com/qmd-dev/qmd/internal/runtime"
	"github.com/qmd-dev/qmd/internal/store"
)

// docInfo is what the pipeline remembers about a fused file so the final
// Result can be built without a second store round-trip.
type docInfo struct {
	docID       int64
	displayPath string
	title       string
	body        string
}

// Engine runs the retrieval pipeline against one Store and
// one Model Runtime Service.
type Engine struct {
	store     *store.Store
	runtime   *runtime.Service
	cfg       config.SearchConfig
	indexName string
	logger    *slog.Logger

	onSearchComplete func()
}

// NewEngine constructs a retrieval Engine. st and rt must be non-nil.
func NewEngine(st *store.Store, rt *runtime.Service, cfg config.SearchConfig, indexName string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, runtime: rt, cfg: cfg, indexName: indexName, logger: logger}
}

// SetSearchHook registers fn to run after every completed Search — the
// background compactor's idle-detection signal.
func (e *Engine) SetSearchHook(fn func()) {
	e.onSearchComplete = fn
}

// Search runs the full pipeline: strong-signal probe, expansion,
// parallel sub-searches, RRF fusion, reranking, snippet extraction.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	collectionIDs, err := e.store.ResolveCollections(req.Collections)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultFinalLimit
	}
	fetchLimit := limit * 2
	if fetchLimit < e.cfg.MinFetchLimit {
		fetchLimit = e.cfg.MinFetchLimit
	}

	subQueries, weights, err := e.buildSubQueries(ctx, req)
	if err != nil {
		return nil, err
	}

	lists, infos, err := e.runSubQueries(ctx, subQueries, fetchLimit, collectionIDs)
	if err != nil {
		return nil, err
	}

	fused := Fuse(lists, weights, e.cfg.RRFConstant, e.cfg.TopRankBonus1, e.cfg.TopRankBonus23)

	candidateN := e.cfg.RerankCandidateCount
	if candidateN <= 0 || candidateN > len(fused) {
		candidateN = len(fused)
	}
	blended := e.rerankAndBlend(ctx, req.Text, fused[:candidateN], infos)
	blended = append(blended, fused[candidateN:]...)

	results := make([]Result, 0, len(blended))
	primaryToken := req.Text
	if len(subQueries) > 0 {
		primaryToken = subQueries[0].Query
	}
	for _, f := range blended {
		info, ok := infos[f.File]
		if !ok {
			continue
		}
		if f.Score < req.MinScore {
			continue
		}
		snippet, line := Extract(info.body, primaryToken, e.cfg.SnippetWindow)
		ctxLabel, _, _ := e.store.PathContext(info.displayPath)
		results = append(results, Result{
			DocID:       info.docID,
			File:        info.displayPath,
			DisplayPath: info.displayPath,
			Title:       info.title,
			Score:       round2(f.Score),
			Snippet:     snippet,
			SnippetLine: line,
			Context:     ctxLabel,
		})
		if len(results) >= limit {
			break
		}
	}

	_ = e.store.LogSearch("query", req.Text, len(results), e.indexName)
	if e.onSearchComplete != nil {
		e.onSearchComplete()
	}
	return results, nil
}

// buildSubQueries picks the expansion path: explicit multi-sub-search
// bypasses expansion entirely; otherwise a strong-signal probe may skip
// expansion in favour of a lexical-only channel; otherwise the Model
// Runtime expands the query into lex/vec (and possibly hyde) sub-queries.
func (e *Engine) buildSubQueries(ctx context.Context, req Request) ([]SubQuery, []float64, error) {
	if len(req.Searches) > 0 {
		return req.Searches, weightsFor(len(req.Searches)), nil
	}

	req = Normalize(req)
	if req.HasExpansions() {
		return callerSubQueries(req), weightsFor(len(req.Keywords) + len(req.Concepts) + boolToInt(req.Passage != "")), nil
	}

	if req.Intent == "" {
		topScore, found, err := e.store.TopBM25Raw(req.Text)
		if err == nil && found && topScore >= e.cfg.StrongSignalThreshold {
			sq := []SubQuery{{Type: runtime.QueryLex, Query: req.Text}}
			return sq, weightsFor(1), nil
		}
	}

	expansions, err := e.runtime.ExpandQuery(ctx, req.Text, runtime.ExpandOpts{Context: req.Intent, IncludeLexical: true})
	if err != nil {
		expansions = runtime.FallbackExpansion(req.Text, true)
	}
	sq := make([]SubQuery, len(expansions))
	for i, ex := range expansions {
		sq[i] = SubQuery{Type: ex.Type, Query: ex.Text}
	}
	return sq, weightsFor(len(sq)), nil
}

// callerSubQueries builds sub-queries from caller expansions:
// each keyword becomes a lex sub-query, each concept a vec sub-query, and
// the passage (if any) a hyde sub-query whose embedded text is the
// passage itself rather than a model-generated hypothetical.
func callerSubQueries(req Request) []SubQuery {
	sq := make([]SubQuery, 0, len(req.Keywords)+len(req.Concepts)+1)
	for _, kw := range req.Keywords {
		sq = append(sq, SubQuery{Type: runtime.QueryLex, Query: kw})
	}
	for _, c := range req.Concepts {
		sq = append(sq, SubQuery{Type: runtime.QueryVec, Query: c})
	}
	if req.Passage != "" {
		sq = append(sq, SubQuery{Type: runtime.QueryHyde, Query: req.Passage})
	}
	return sq
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// weightsFor assigns the first sub-query weight 2.0 and the rest 1.0.
func weightsFor(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		if i == 0 {
			w[i] = 2.0
		} else {
			w[i] = 1.0
		}
	}
	return w
}

// runSubQueries executes every sub-query concurrently and returns
// one ranked list per sub-query in input order, plus the merged doc-info
// map used to build final results and rerank candidates.
func (e *Engine) runSubQueries(ctx context.Context, subQueries []SubQuery, limit int, collectionIDs []int64) ([][]RankedItem, map[string]docInfo, error) {
	lists := make([][]RankedItem, len(subQueries))
	infoCh := make(chan map[string]docInfo, len(subQueries))

	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range subQueries {
		i, sq := i, sq
		g.Go(func() error {
			items, infos, err := e.runOne(gctx, sq, limit, collectionIDs)
			if err != nil {
				e.logger.Warn("sub-search failed, continuing without it", "type", sq.Type, "error", err)
				return nil
			}
			lists[i] = items
			infoCh <- infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	close(infoCh)

	merged := map[string]docInfo{}
	for infos := range infoCh {
		for k, v := range infos {
			merged[k] = v
		}
	}
	return lists, merged, nil
}

func (e *Engine) runOne(ctx context.Context, sq SubQuery, limit int, collectionIDs []int64) ([]RankedItem, map[string]docInfo, error) {
	switch sq.Type {
	case runtime.QueryVec, runtime.QueryHyde:
		// Both channels embed sq.Query directly and search the vector
		// index: for vec it is the query (or a caller concept), for hyde
		// it is already a full hypothetical passage — either produced by
		// expand_query's "hyde" key or supplied verbatim by the caller's
		// structured-query "passage" field.
		vec, _, err := e.runtime.EmbedQuery(ctx, sq.Query)
		if err != nil {
			return nil, nil, err
		}
		hits, err := e.store.SearchVec(vec, limit, collectionIDs)
		if err != nil {
			return nil, nil, err
		}
		items := make([]RankedItem, len(hits))
		infos := make(map[string]docInfo, len(hits))
		for i, h := range hits {
			items[i] = RankedItem{File: h.DisplayPath, Score: h.Score}
			infos[h.DisplayPath] = docInfo{docID: h.DocID, displayPath: h.DisplayPath, title: h.Title, body: h.Body}
		}
		return items, infos, nil

	default: // lex
		hits, err := e.store.SearchFTS(sq.Query, limit, collectionIDs)
		if err != nil {
			return nil, nil, err
		}
		items := make([]RankedItem, len(hits))
		infos := make(map[string]docInfo, len(hits))
		for i, h := range hits {
			items[i] = RankedItem{File: h.DisplayPath, Score: h.Score}
			infos[h.DisplayPath] = docInfo{docID: h.DocID, displayPath: h.DisplayPath, title: h.Title, body: h.Body}
		}
		return items, infos, nil
	}
}

// rerankAndBlend reranks the top candidates through the Model Runtime;
// the blended score replaces each candidate's RRF score according to its
// fused-rank band, then the slice is re-sorted.
func (e *Engine) rerankAndBlend(ctx context.Context, query string, candidates []Fused, infos map[string]docInfo) []Fused {
	if len(candidates) == 0 {
		return candidates
	}

	rcs := make([]runtime.RerankCandidate, len(candidates))
	for i, c := range candidates {
		rcs[i] = runtime.RerankCandidate{File: c.File, Text: infos[c.File].body}
	}

	res, err := e.runtime.Rerank(ctx, query, rcs)
	if err != nil {
		e.logger.Warn("rerank failed, keeping RRF order", "error", err)
		return candidates
	}

	scoreByFile := make(map[string]float64, len(res.Results))
	for _, hit := range res.Results {
		scoreByFile[hit.File] = hit.Score
	}

	out := make([]Fused, len(candidates))
	for i, c := range candidates {
		rerankScore, ok := scoreByFile[c.File]
		if !ok {
			out[i] = c
			continue
		}
		rrfWeight, rerankWeight := blendWeights(i+1, e.cfg)
		blend := rrfWeight*c.Score + rerankWeight*rerankScore
		out[i] = Fused{File: c.File, Score: blend, TopRank: c.TopRank}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// blendWeights returns the (rrf, rerank) weight pair for fusedRank
// (1-based) across the three blend bands.
func blendWeights(fusedRank int, cfg config.SearchConfig) (rrf, rerank float64) {
	switch {
	case fusedRank <= 3:
		return 1 - cfg.RerankBlendNear, cfg.RerankBlendNear
	case fusedRank <= 10:
		return 1 - cfg.RerankBlendMid, cfg.RerankBlendMid
	default:
		return 1 - cfg.RerankBlendFar, cfg.RerankBlendFar
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
