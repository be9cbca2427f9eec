package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBPathPrecedence(t *testing.T) {
	// Run from a directory with no .qmd/ so project-local resolution
	// cannot interfere with the env-based cases.
	wd := t.TempDir()
	t.Chdir(wd)

	t.Setenv("QMD_CACHE_DIR", "/tmp/qmd-cache-override")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	p, err := DBPath("default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/qmd-cache-override", "qmd", "default.db"), p)

	t.Setenv("QMD_CACHE_DIR", "")
	p, err = DBPath("default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-cache", "qmd", "default.db"), p)

	// A project-local .qmd/ beats both env vars.
	require.NoError(t, os.MkdirAll(filepath.Join(wd, ".qmd"), 0o755))
	t.Setenv("QMD_CACHE_DIR", "/tmp/qmd-cache-override")
	p, err = DBPath("work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, ".qmd", "work.db"), p)
}

func TestApplyEnvOverridesProviderFallback(t *testing.T) {
	cfg := Default()
	t.Setenv("QMD_LLM_PROVIDER", "openrouter")
	applyEnvOverrides(&cfg)
	assert.Equal(t, "openrouter", cfg.Embeddings.Provider)

	t.Setenv("QMD_LLM_PROVIDER", "something-unknown")
	applyEnvOverrides(&cfg)
	assert.Equal(t, "local", cfg.Embeddings.Provider)
}

func TestApplyEnvOverridesRemoteSettings(t *testing.T) {
	cfg := Default()
	t.Setenv("QMD_API_KEY", "sk-test")
	t.Setenv("QMD_API_BASE_URL", "https://example.test/v1")
	t.Setenv("QMD_API_EMBED_MODEL", "embedder-1")
	t.Setenv("QMD_API_RERANK_BASE_URL", "https://rerank.test")
	t.Setenv("QMD_API_RERANK_MODEL", "reranker-1")
	applyEnvOverrides(&cfg)

	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	assert.Equal(t, "https://example.test/v1", cfg.Embeddings.APIBaseURL)
	assert.Equal(t, "embedder-1", cfg.Embeddings.APIEmbedModel)
	assert.Equal(t, "https://rerank.test", cfg.Embeddings.RerankBaseURL)
	assert.Equal(t, "reranker-1", cfg.Embeddings.RerankModel)
}

func TestDefaultTunables(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.Search.ChunkSize)
	assert.Equal(t, 200, cfg.Search.ChunkOverlap)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 0.05, cfg.Search.TopRankBonus1)
	assert.Equal(t, 0.02, cfg.Search.TopRankBonus23)
	assert.Equal(t, 30, cfg.Search.RerankCandidateCount)
	assert.Equal(t, 50, cfg.Search.MinFetchLimit)
	assert.Equal(t, 300, cfg.Search.SnippetWindow)

	assert.True(t, cfg.Compaction.Enabled)
	assert.Equal(t, 0.2, cfg.Compaction.OrphanThreshold)
	assert.Equal(t, 100, cfg.Compaction.MinOrphanCount)
	assert.Equal(t, "30s", cfg.Compaction.IdleTimeout)
	assert.Equal(t, "1h", cfg.Compaction.Cooldown)
}
