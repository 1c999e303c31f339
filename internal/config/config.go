package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DSN         string           `json:"dsn"`
	JWTSecret   string           `json:"jwt_secret"`
	Port        int              `json:"port"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	RAG         RAGConfig        `json:"rag"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider string      `json:"provider"`
	Data     interface{} `json:"data"`
}

// RAGConfig tunes the retrieval pipeline. Everything has a working default;
// EmbeddingModel must map to a known dimensionality.
type RAGConfig struct {
	EmbeddingModel     string `json:"embedding_model"`
	MaxChunkTokens     int    `json:"max_chunk_tokens"`
	BatchTokenLimit    int    `json:"batch_token_limit"`
	EmbedWorkers       int    `json:"embed_workers"`
	LRUCacheSize       int    `json:"lru_cache_size"`
	LRUCacheTTLMinutes int    `json:"lru_cache_ttl_minutes"`
	VectorTTLMinutes   int    `json:"vector_ttl_minutes"`
	CacheRetentionDays int    `json:"cache_retention_days"`
	// ContextWindows adds or overrides chat model context window sizes at
	// startup, on top of the migration-seeded defaults.
	ContextWindows map[string]int `json:"context_windows"`
}

// ModelDimensions maps each supported embedding model to its vector length.
// Stored vectors are validated against this on every load and store.
var ModelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"gemini-embedding-001":   3072,
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.RAG.EmbeddingModel == "" {
		cfg.RAG.EmbeddingModel = "text-embedding-ada-002"
	}
	if _, ok := ModelDimensions[cfg.RAG.EmbeddingModel]; !ok {
		return nil, fmt.Errorf("unsupported embedding model: %s", cfg.RAG.EmbeddingModel)
	}
	if cfg.RAG.MaxChunkTokens == 0 {
		cfg.RAG.MaxChunkTokens = 512
	}
	if cfg.RAG.BatchTokenLimit == 0 {
		cfg.RAG.BatchTokenLimit = 8000
	}
	if cfg.RAG.EmbedWorkers == 0 {
		cfg.RAG.EmbedWorkers = 4
	}
	if cfg.RAG.LRUCacheSize == 0 {
		cfg.RAG.LRUCacheSize = 4096
	}
	if cfg.RAG.LRUCacheTTLMinutes == 0 {
		cfg.RAG.LRUCacheTTLMinutes = 60
	}
	if cfg.RAG.VectorTTLMinutes == 0 {
		cfg.RAG.VectorTTLMinutes = 30
	}
	if cfg.RAG.CacheRetentionDays == 0 {
		cfg.RAG.CacheRetentionDays = 30
	}
	return &cfg, nil
}
