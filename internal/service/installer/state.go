package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sandevgo/recall/internal/service/chat"
	"github.com/sandevgo/recall/pkg/env"
)

// Keys that only steer the wizard and never reach .env.
const (
	keyChannel = "_CHANNEL"
)

const (
	channelCLI      = "cli"
	channelTelegram = "telegram"
	channelHTTP     = "http"
)

var ErrEnvExists = errors.New(".env file already exists")

type InstallState struct {
	EnvVars map[string]string
}

func NewInstallState() *InstallState {
	return &InstallState{
		EnvVars: make(map[string]string),
	}
}

func (s *InstallState) provider() string {
	return s.EnvVars["RECALL_LLM_PROVIDER"]
}

// Finalize derives transport flags and shared keys from the answers.
func (s *InstallState) Finalize() {
	channel := s.EnvVars[keyChannel]
	delete(s.EnvVars, keyChannel)

	s.EnvVars["RECALL_ENABLE_CLI"] = fmt.Sprint(channel == channelCLI)
	s.EnvVars["RECALL_ENABLE_TELEGRAM"] = fmt.Sprint(channel == channelTelegram)
	s.EnvVars["RECALL_ENABLE_HTTP"] = fmt.Sprint(channel == channelHTTP)

	if s.EnvVars["RECALL_EMBEDDING_PROVIDER"] == "openai" {
		s.EnvVars["RECALL_EMBEDDING_BASE_URL"] = "https://api.openai.com"
		s.EnvVars["RECALL_EMBEDDING_MODEL"] = "text-embedding-3-small"
		if s.EnvVars["RECALL_EMBEDDING_API_KEY"] == "" {
			s.EnvVars["RECALL_EMBEDDING_API_KEY"] = s.EnvVars["RECALL_OPENAI_API_KEY"]
		}
	} else if url := s.EnvVars["RECALL_OLLAMA_BASE_URL"]; url != "" {
		s.EnvVars["RECALL_EMBEDDING_BASE_URL"] = url
	}
}

// WriteEnv writes the answers to dir/.env. An existing file is never overwritten.
func (s *InstallState) WriteEnv(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return "", fmt.Errorf("%w at %s", ErrEnvExists, envPath)
	}

	if err := os.WriteFile(envPath, []byte(env.MarshalMap(s.EnvVars)), 0600); err != nil {
		return "", err
	}
	return envPath, nil
}

// InitFiles seeds dir/SYSTEM.md with the default persona unless one exists.
func InitFiles(dir string) error {
	path := filepath.Join(dir, "SYSTEM.md")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(chat.DefaultPersona+"\n"), 0644)
}
