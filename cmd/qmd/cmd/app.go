package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qmd-dev/qmd/internal/config"
	"github.com/qmd-dev/qmd/internal/logging"
	"github.com/qmd-dev/qmd/internal/retrieval"
	"github.com/qmd-dev/qmd/internal/runtime"
	"github.com/qmd-dev/qmd/internal/store"
)

// app bundles the process-wide collaborators a command needs: config,
// the Store handle, the Model Runtime Service, and the Retrieval Engine
// built on top of them. Each command opens and closes its own app
// rather than sharing one handle across the process.
type app struct {
	cfg     config.Config
	store   *store.Store
	runtime *runtime.Service
	engine  *retrieval.Engine
	logger  *slog.Logger
}

// openApp loads configuration for indexName, opens the Store, and wires
// a Model Runtime Service from the configured provider. close() must be
// deferred by the caller.
func openApp(indexName string, debug bool) (a *app, close func(), err error) {
	logCfg := logging.DefaultConfig()
	if debug {
		logCfg = logging.DebugConfig()
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("qmd: %w", err)
	}

	cfg, err := config.Load(indexName)
	if err != nil {
		logCleanup()
		return nil, nil, fmt.Errorf("qmd: load config: %w", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logCleanup()
		return nil, nil, fmt.Errorf("qmd: open index: %w", err)
	}

	provider := newProvider(cfg)
	idleUnload := time.Duration(cfg.Sessions.IdleUnloadSeconds) * time.Second
	maxDuration := time.Duration(cfg.Sessions.MaxDurationSeconds) * time.Second
	rt := runtime.NewService(provider, idleUnload, maxDuration, cfg.Embeddings.CacheSize, logger)
	rt.SetCacheStore(st, time.Duration(cfg.Embeddings.CacheTTLDays)*24*time.Hour)

	engine := retrieval.NewEngine(st, rt, cfg.Search, cfg.IndexName, logger)

	compactor := store.NewCompactor(st, store.CompactionPolicy{
		Enabled:         cfg.Compaction.Enabled,
		OrphanThreshold: cfg.Compaction.OrphanThreshold,
		MinOrphanCount:  cfg.Compaction.MinOrphanCount,
		IdleTimeout:     parseDuration(cfg.Compaction.IdleTimeout, 30*time.Second),
		Cooldown:        parseDuration(cfg.Compaction.Cooldown, time.Hour),
	}, logger)
	engine.SetSearchHook(compactor.OnSearchComplete)

	a = &app{cfg: cfg, store: st, runtime: rt, engine: engine, logger: logger}
	closeFn := func() {
		compactor.Stop()
		_ = rt.Dispose(context.Background())
		_ = st.Close()
		logCleanup()
	}
	return a, closeFn, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// newProvider selects a Model Runtime provider from cfg.Embeddings
// (QMD_LLM_PROVIDER: local or openrouter).
func newProvider(cfg config.Config) runtime.Provider {
	timeout := time.Duration(cfg.Embeddings.OllamaTimeout) * time.Second

	switch cfg.Embeddings.Provider {
	case "openrouter":
		remote := runtime.NewRemoteProvider(
			cfg.Embeddings.APIBaseURL,
			cfg.Embeddings.APIKey,
			cfg.Embeddings.APIEmbedModel,
			cfg.Embeddings.APIEmbedModel,
			timeout,
		)
		if cfg.Embeddings.RerankBaseURL != "" {
			return runtime.NewRerankRemoteProvider(remote, cfg.Embeddings.RerankBaseURL, cfg.Embeddings.RerankAPIKey, cfg.Embeddings.RerankModel)
		}
		return remote
	default:
		return runtime.NewOllamaProvider(cfg.Embeddings.OllamaHost, cfg.Embeddings.OllamaModel, timeout)
	}
}
