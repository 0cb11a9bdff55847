package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/recall/pkg/log"
)

type EmbeddingConfig struct {
	Provider  string        `env:"RECALL_EMBEDDING_PROVIDER" envDefault:"ollama"`
	Model     string        `env:"RECALL_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	BaseURL   string        `env:"RECALL_EMBEDDING_BASE_URL" envDefault:"http://127.0.0.1:11434"`
	APIKey    string        `env:"RECALL_EMBEDDING_API_KEY"`
	Timeout   time.Duration `env:"RECALL_EMBEDDING_TIMEOUT" envDefault:"30s"`
	MaxTokens int           `env:"RECALL_EMBEDDING_MAX_TOKENS" envDefault:"400"`
	CacheSize int64         `env:"RECALL_EMBEDDING_CACHE_ITEMS" envDefault:"10000"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	cfg := &EmbeddingConfig{}
	if err := env.Parse(cfg); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Embedding config")
	}
	return cfg
}
