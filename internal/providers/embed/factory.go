package embed

import (
	"context"
	"fmt"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/tokens"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// NewFromConfig builds the configured backend with chunking and, when
// CacheSize > 0, a ristretto cache in front. The returned cleanup releases the cache.
func NewFromConfig(ctx context.Context, cfg *config.EmbeddingConfig) (core.Embedder, func(), error) {
	var backend Backend
	switch cfg.Provider {
	case ProviderOllama:
		backend = NewOllama(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		backend = NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	var chunker *Chunker
	if cfg.MaxTokens > 0 {
		tk, err := tokens.Encoding()
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("tokenizer unavailable, embedding without chunking")
		} else {
			chunkCfg := DefaultChunkerConfig()
			chunkCfg.MaxTokens = cfg.MaxTokens
			chunkCfg.OverlapTokens = min(chunkCfg.OverlapTokens, cfg.MaxTokens/4)
			chunker = NewChunker(tk, chunkCfg)
		}
	}

	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting embedding provider")

	var embedder core.Embedder = NewEmbedder(backend, chunker)
	if cfg.CacheSize <= 0 {
		return embedder, func() {}, nil
	}

	cached, err := NewCachedEmbedder(embedder, cfg.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return cached, func() { _ = cached.Shutdown() }, nil
}
