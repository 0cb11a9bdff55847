package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/recall/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"RECALL_RUNTIME_PATH" envDefault:".recall"`

	// Generation backend
	Provider            string        `env:"RECALL_LLM_PROVIDER" envDefault:"ollama"`
	Model               string        `env:"RECALL_MODEL" envDefault:"qwen2.5-coder:1.5b"`
	OllamaBaseURL       string        `env:"RECALL_OLLAMA_BASE_URL" envDefault:"http://127.0.0.1:11434"`
	OllamaAPIKey        string        `env:"RECALL_OLLAMA_API_KEY"`
	OpenAIAPIKey        string        `env:"RECALL_OPENAI_API_KEY"`
	OpenRouterAPIKey    string        `env:"RECALL_OPENROUTER_API_KEY"`
	AnthropicAPIKey     string        `env:"RECALL_ANTHROPIC_API_KEY"`
	CustomOpenAIBaseURL string        `env:"RECALL_CUSTOM_OPENAI_BASE_URL"`
	CustomOpenAIAPIKey  string        `env:"RECALL_CUSTOM_OPENAI_API_KEY"`
	GenerateTimeout     time.Duration `env:"RECALL_GENERATE_TIMEOUT" envDefault:"120s"`

	// Transport Flags
	EnableTelegram bool `env:"RECALL_ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"RECALL_ENABLE_CLI" envDefault:"true"`
	EnableHTTP     bool `env:"RECALL_ENABLE_HTTP" envDefault:"false"`

	HTTPAddr        string        `env:"RECALL_HTTP_ADDR" envDefault:":8000"`
	HTTPReadTimeout time.Duration `env:"RECALL_HTTP_READ_TIMEOUT" envDefault:"30s"`

	APIKeyEnabled bool `env:"RECALL_API_KEY_ENABLED" envDefault:"true"`
	HistoryLimit  int  `env:"RECALL_HISTORY_LIMIT" envDefault:"10"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	if !filepath.IsAbs(c.RuntimePath) {
		c.RuntimePath = GetRuntimePath()
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "recall.db")
}

func (c AppConfig) GetRetrievalLogPath() string {
	return filepath.Join(c.RuntimePath, "retrievals.jsonl")
}

func (c AppConfig) GetAPIKeysPath() string {
	return filepath.Join(c.RuntimePath, "api_keys.json")
}

func (c AppConfig) GetInputHistoryPath() string {
	return filepath.Join(c.RuntimePath, "input_history")
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}
