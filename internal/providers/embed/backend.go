package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Backend embeds a batch of texts in one call, one vector per input.
type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type httpBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func newHTTPBackend(baseURL, apiKey, model string) httpBackend {
	return httpBackend{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *httpBackend) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Ollama calls /api/embed.
type Ollama struct {
	httpBackend
}

func NewOllama(baseURL, apiKey, model string) *Ollama {
	return &Ollama{httpBackend: newHTTPBackend(baseURL, apiKey, model)}
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := o.post(ctx, "/api/embed", map[string]any{
		"model": o.model,
		"input": texts,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// OpenAI calls /v1/embeddings on OpenAI or any compatible server.
type OpenAI struct {
	httpBackend
}

func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	return &OpenAI{httpBackend: newHTTPBackend(baseURL, apiKey, model)}
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := o.post(ctx, "/v1/embeddings", map[string]any{
		"model": o.model,
		"input": texts,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
