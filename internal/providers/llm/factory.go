package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderCustom     = "custom"
)

// Provider is a generation backend that can also list its models.
type Provider interface {
	core.Generator
	core.ModelLister
}

// NewProvider creates the generation backend selected by configuration.
func NewProvider(ctx context.Context, cfg *config.AppConfig) (Provider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	return newProvider(cfg.Provider, cfg, cfg.Model)
}

func newProvider(name string, cfg *config.AppConfig, model string) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, model), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, model), nil
	case ProviderOpenRouter:
		return NewOpenRouter(cfg.OpenRouterAPIKey, model), nil
	case ProviderOllama:
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, model), nil
	case ProviderCustom:
		return NewCustomOpenAI(cfg.CustomOpenAIBaseURL, cfg.CustomOpenAIAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
}
