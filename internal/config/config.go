// Package config builds qmd's immutable process-wide configuration from
// defaults, a project-local YAML file, and environment variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SearchConfig holds retrieval tunables. Thresholds with no clear
// source of ground truth ship here as configuration, not constants.
type SearchConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	RRFConstant    int     `yaml:"rrf_constant"`
	TopRankBonus1  float64 `yaml:"top_rank_bonus_1"`
	TopRankBonus23 float64 `yaml:"top_rank_bonus_2_3"`

	StrongSignalThreshold float64 `yaml:"strong_signal_threshold"`

	RerankBlendNear float64 `yaml:"rerank_blend_near"` // fused rank <= 3
	RerankBlendMid  float64 `yaml:"rerank_blend_mid"`  // fused rank 4-10
	RerankBlendFar  float64 `yaml:"rerank_blend_far"`  // fused rank 11+

	RerankCandidateCount int `yaml:"rerank_candidate_count"`
	MinFetchLimit        int `yaml:"min_fetch_limit"`
	DefaultFinalLimit    int `yaml:"default_final_limit"`
	SnippetWindow        int `yaml:"snippet_window"`

	MultiQueryConsensusBoost float64 `yaml:"multi_query_consensus_boost"`
}

// EmbeddingsConfig holds Model Runtime provider settings.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider"` // "local" | "openrouter"

	OllamaHost    string `yaml:"ollama_host"`
	OllamaModel   string `yaml:"ollama_model"`
	OllamaTimeout int    `yaml:"ollama_timeout_seconds"`

	APIKey        string `yaml:"-"`
	APIBaseURL    string `yaml:"-"`
	APIEmbedModel string `yaml:"-"`

	RerankAPIKey     string `yaml:"-"`
	RerankBaseURL    string `yaml:"-"`
	RerankModel      string `yaml:"-"`

	CacheSize    int `yaml:"cache_size"`
	CacheTTLDays int `yaml:"cache_ttl_days"`
}

// ServerConfig holds MCP/HTTP transport settings.
type ServerConfig struct {
	HTTPEnabled bool   `yaml:"http_enabled"`
	HTTPHost    string `yaml:"http_host"`
	HTTPPort    int    `yaml:"http_port"`
}

// SessionConfig holds Model Runtime session-manager settings.
type SessionConfig struct {
	IdleUnloadSeconds int `yaml:"idle_unload_seconds"`
	MaxDurationSeconds int `yaml:"max_duration_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// CompactionConfig governs the orphan-vector background sweep: it runs
// only once the index has gone idle, and only when the orphan ratio and
// count both say the sweep is worth the churn.
type CompactionConfig struct {
	Enabled bool `yaml:"enabled"`
	// OrphanThreshold is the orphans/total ratio that makes a sweep
	// eligible, in (0,1].
	OrphanThreshold float64 `yaml:"orphan_threshold"`
	// MinOrphanCount skips sweeps of small indexes with high ratios.
	MinOrphanCount int `yaml:"min_orphan_count"`
	// IdleTimeout is how long without searches before the index counts
	// as idle, as a duration string ("30s").
	IdleTimeout string `yaml:"idle_timeout"`
	// Cooldown is the minimum gap between sweeps ("1h").
	Cooldown string `yaml:"cooldown"`
}

// Config is the single immutable configuration value constructed at
// startup; nothing in the core mutates it after Load returns.
type Config struct {
	IndexName string `yaml:"-"`
	DBPath    string `yaml:"-"`

	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
	Sessions   SessionConfig    `yaml:"sessions"`
	Compaction CompactionConfig `yaml:"compaction"`
}

// Default returns the baseline configuration before any file/env overrides.
func Default() Config {
	return Config{
		Search: SearchConfig{
			ChunkSize:                1000,
			ChunkOverlap:             200,
			RRFConstant:              60,
			TopRankBonus1:            0.05,
			TopRankBonus23:           0.02,
			StrongSignalThreshold:    8.0,
			RerankBlendNear:          0.25,
			RerankBlendMid:           0.40,
			RerankBlendFar:           0.60,
			RerankCandidateCount:     30,
			MinFetchLimit:            50,
			DefaultFinalLimit:        10,
			SnippetWindow:            300,
			MultiQueryConsensusBoost: 0.1,
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "local",
			OllamaHost:    "http://localhost:11434",
			OllamaModel:   "nomic-embed-text",
			OllamaTimeout: 60,
			CacheSize:     1000,
			CacheTTLDays:  7,
		},
		Server: ServerConfig{
			HTTPHost: "127.0.0.1",
			HTTPPort: 8730,
		},
		Sessions: SessionConfig{
			IdleUnloadSeconds:     300,
			MaxDurationSeconds:    600,
			RequestTimeoutSeconds: 60,
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
	}
}

// Load builds the effective configuration for indexName: defaults, then a
// `config.yaml` in the directory holding the index database (the
// project-local `.qmd/` when one is found) if present, then environment
// overrides.
func Load(indexName string) (Config, error) {
	cfg := Default()
	cfg.IndexName = indexName

	dbPath, err := DBPath(indexName)
	if err != nil {
		return Config{}, err
	}
	cfg.DBPath = dbPath

	yamlPath := filepath.Join(filepath.Dir(dbPath), "config.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QMD_API_KEY"); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := os.Getenv("QMD_API_BASE_URL"); v != "" {
		cfg.Embeddings.APIBaseURL = v
	}
	if v := os.Getenv("QMD_API_EMBED_MODEL"); v != "" {
		cfg.Embeddings.APIEmbedModel = v
	}
	if v := os.Getenv("QMD_API_RERANK_KEY"); v != "" {
		cfg.Embeddings.RerankAPIKey = v
	}
	if v := os.Getenv("QMD_API_RERANK_BASE_URL"); v != "" {
		cfg.Embeddings.RerankBaseURL = v
	}
	if v := os.Getenv("QMD_API_RERANK_MODEL"); v != "" {
		cfg.Embeddings.RerankModel = v
	}
	switch os.Getenv("QMD_LLM_PROVIDER") {
	case "local", "openrouter":
		cfg.Embeddings.Provider = os.Getenv("QMD_LLM_PROVIDER")
	case "":
		// unset: keep default/file value
	default:
		// unknown values fall back to local
		cfg.Embeddings.Provider = "local"
	}
	if v := os.Getenv("QMD_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("QMD_OLLAMA_MODEL"); v != "" {
		cfg.Embeddings.OllamaModel = v
	}
	if v := os.Getenv("QMD_OLLAMA_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.OllamaTimeout = n
		}
	}
}
