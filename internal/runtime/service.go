package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// embedCacheEntry is what Service's query-embedding LRU stores. Only
// query-role embeds are cached: document embeds are written once per
// content hash and are never worth caching in-process.
type embedCacheEntry struct {
	vector []float32
	model  string
}

// CacheStore is the slice of Store's provider-cache operations the
// Service needs for the persistent rerank cache (cache_key to opaque
// result, 7-day eviction window). Satisfied
// structurally by *store.Store.
type CacheStore interface {
	CacheGet(key string, ttl time.Duration) ([]byte, bool, error)
	CachePut(key, endpoint string, response []byte) error
}

// Service is the process-wide Model Runtime: it wraps a Provider with a
// session manager, a query-embedding LRU cache, a persistent
// rerank-result cache, and the NoOpRerank fallback for providers without
// a rerank endpoint.
type Service struct {
	provider Provider
	sessions *SessionManager
	cache    *lru.Cache[string, embedCacheEntry]
	logger   *slog.Logger

	cacheStore CacheStore
	cacheTTL   time.Duration
}

// NewService builds a Service around provider. idleUnload/maxDuration
// configure the session manager; cacheSize <= 0
// disables the in-process query-embedding cache.
func NewService(provider Provider, idleUnload, maxDuration time.Duration, cacheSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{provider: provider, logger: logger, cacheTTL: 7 * 24 * time.Hour}
	s.sessions = NewSessionManager(idleUnload, maxDuration, s.onIdle)
	if cacheSize > 0 {
		c, err := lru.New[string, embedCacheEntry](cacheSize)
		if err == nil {
			s.cache = c
		}
	}
	return s
}

// SetCacheStore wires the persistent provider_cache table into the
// Service's rerank path, read-through with ttl (default 7 days; a
// non-positive ttl leaves the default in place).
func (s *Service) SetCacheStore(store CacheStore, ttl time.Duration) {
	s.cacheStore = store
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// onIdle disposes per-context resources once the runtime has sat idle. The concrete Provider's Dispose releases connection-pool/native
// resources; the provider itself (and any loaded model weights) stays
// resident unless an aggressive-reclaim flag elsewhere chooses to call
// Dispose a second time before process exit.
func (s *Service) onIdle(ctx context.Context) {
	s.logger.Debug("model runtime idle-unload firing")
	if err := s.provider.Dispose(ctx); err != nil {
		s.logger.Warn("idle-unload dispose failed", "error", err)
	}
}

func queryCacheKey(text string) string {
	sum := sha256.Sum256([]byte("query:" + text))
	return hex.EncodeToString(sum[:])
}

// Embed implements the structural Embedder interface ingest.Embed expects:
// document-role embedding of one chunk, titled for role-aware
// formatting ("search_document: <title>" prefixing).
func (s *Service) Embed(ctx context.Context, text, title string) ([]float32, string, error) {
	end := s.sessions.beginOp()
	defer end()

	res, err := s.provider.Embed(ctx, text, EmbedOpts{IsQuery: false, Title: title})
	if err != nil {
		s.logger.Warn("embed failed", "error", err)
		return nil, "", err
	}
	return res.Vector, res.Model, nil
}

// EmbedQuery embeds text in the query role ("search_query: " prefix),
// read-through cached by exact query text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, string, error) {
	key := queryCacheKey(text)
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			return hit.vector, hit.model, nil
		}
	}

	end := s.sessions.beginOp()
	defer end()

	res, err := s.provider.Embed(ctx, text, EmbedOpts{IsQuery: true})
	if err != nil {
		s.logger.Warn("query embed failed", "error", err)
		return nil, "", err
	}
	if s.cache != nil {
		s.cache.Add(key, embedCacheEntry{vector: res.Vector, model: res.Model})
	}
	return res.Vector, res.Model, nil
}

// EmbedBatch implements Provider.EmbedBatch's contract for callers outside
// the ingest loop (e.g. multi-file reindex tooling).
func (s *Service) EmbedBatch(ctx context.Context, texts []string, opts EmbedOpts) ([]*EmbedResult, error) {
	end := s.sessions.beginOp()
	defer end()
	return s.provider.EmbedBatch(ctx, texts, opts)
}

// Generate implements Provider.Generate, routed through the in-flight
// counter like every other model call. The retrieval pipeline does not
// call it: its hyde sub-queries embed text that expand_query or the
// caller already supplies.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	end := s.sessions.beginOp()
	defer end()
	return s.provider.Generate(ctx, prompt)
}

// ExpandQuery delegates to the provider and falls back to the
// deterministic shape on any failure. The provider itself already
// applies that fallback, so Service's job is only to route the call
// through the in-flight counter.
func (s *Service) ExpandQuery(ctx context.Context, text string, opts ExpandOpts) ([]Queryable, error) {
	end := s.sessions.beginOp()
	defer end()

	out, err := s.provider.ExpandQuery(ctx, text, opts)
	if err != nil {
		s.logger.Warn("expand_query failed, using fallback", "error", err)
		return FallbackExpansion(text, opts.IncludeLexical), nil
	}
	return out, nil
}

// rerankCacheKey is the canonical-JSON request shape hashed into the
// provider_cache's cache_key.
type rerankCacheKey struct {
	Query      string            `json:"query"`
	Candidates []RerankCandidate `json:"candidates"`
}

// Rerank scores candidates against query, read-through cached in the
// persistent provider_cache when a CacheStore is wired, and falling back
// to NoOpRerank's identity pass-through when the underlying provider has
// no rerank endpoint (OllamaProvider, plain RemoteProvider) rather than
// failing the whole retrieval pipeline.
func (s *Service) Rerank(ctx context.Context, query string, candidates []RerankCandidate) (RerankResult, error) {
	const endpoint = "rerank"

	var key string
	if s.cacheStore != nil {
		var err error
		key, err = cacheKeyForRequest(endpoint, rerankCacheKey{Query: query, Candidates: candidates})
		if err == nil {
			if raw, ok, gerr := s.cacheStore.CacheGet(key, s.cacheTTL); gerr == nil && ok {
				var cached RerankResult
				if json.Unmarshal(raw, &cached) == nil {
					return cached, nil
				}
			}
		}
	}

	end := s.sessions.beginOp()
	defer end()

	res, err := s.provider.Rerank(ctx, query, candidates)
	if err != nil {
		s.logger.Debug("rerank unsupported or failed, passing through RRF order", "error", err)
		return NoOpRerank(candidates), nil
	}

	if s.cacheStore != nil && key != "" {
		if raw, merr := json.Marshal(res); merr == nil {
			if err := s.cacheStore.CachePut(key, endpoint, raw); err != nil {
				s.logger.Debug("rerank cache write failed", "error", err)
			}
		}
	}
	return res, nil
}

// NoOpRerank returns candidates in their input order as an identity
// RerankResult: the rerank stage degrades to "no reranking" rather
// than failing the request when no cross-encoder is available.
func NoOpRerank(candidates []RerankCandidate) RerankResult {
	hits := make([]RerankHit, len(candidates))
	for i, c := range candidates {
		hits[i] = RerankHit{File: c.File, Score: 1 - float64(i)*1e-6, Index: i}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return RerankResult{Results: hits, Model: "none"}
}

// ModelExists delegates to the provider.
func (s *Service) ModelExists(ctx context.Context, model string) bool {
	return s.provider.ModelExists(ctx, model)
}

// WithSession exposes the session manager's lease to callers that need an
// explicit scope around several model calls.
func (s *Service) WithSession(ctx context.Context, name string, maxDuration time.Duration, cancelToken <-chan struct{}, fn func(*Session) error) error {
	return s.sessions.WithSession(ctx, name, maxDuration, cancelToken, fn)
}

// Dispose releases resources in reverse dependency order: the session
// manager stops accepting new leases, then the provider's
// own Dispose is called with a hard timeout so a hung native call cannot
// block process shutdown.
func (s *Service) Dispose(ctx context.Context) error {
	s.sessions.Shutdown()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.provider.Dispose(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return qmderr.Cancelled(qmderr.CodeShutdown, "provider dispose timed out")
	}
}

// cacheKeyForRequest builds a stable cache key from endpoint plus a
// canonical JSON encoding of req.
func cacheKeyForRequest(endpoint string, req any) (string, error) {
	canon, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(endpoint+"\x00"), canon...))
	return hex.EncodeToString(sum[:]), nil
}
