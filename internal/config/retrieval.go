package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/tokens"
)

type RetrievalConfig struct {
	SemanticWeight float64 `env:"RECALL_SEMANTIC_WEIGHT" envDefault:"0.7"`
	RecencyWeight  float64 `env:"RECALL_RECENCY_WEIGHT" envDefault:"0.3"`
	MaxTokens      int     `env:"RECALL_MAX_TOKENS" envDefault:"2000"`
	TopK           int     `env:"RECALL_TOP_K" envDefault:"20"`
	Tokenizer      string  `env:"RECALL_TOKENIZER" envDefault:"approx"`
	PreviewSize    int     `env:"RECALL_PREVIEW_SIZE" envDefault:"3"`
}

func NewRetrievalConfig(ctx context.Context) *RetrievalConfig {
	c := &RetrievalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Retrieval config")
	}
	if err := c.Validate(); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("invalid Retrieval config")
	}
	return c
}

func (c RetrievalConfig) Validate() error {
	if c.SemanticWeight < 0 || c.RecencyWeight < 0 {
		return fmt.Errorf("weights must be non-negative, got %.2f/%.2f", c.SemanticWeight, c.RecencyWeight)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	switch c.Tokenizer {
	case tokens.Approx, tokens.Tiktoken:
	default:
		return fmt.Errorf("unknown tokenizer: %s", c.Tokenizer)
	}
	return nil
}

func (c RetrievalConfig) Weights() core.Weights {
	return core.Weights{Semantic: c.SemanticWeight, Recency: c.RecencyWeight}
}
