package core

import "context"

// Embedder turns text into a fixed-dimension vector.
// Identical input yields identical output for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type TokenCounter interface {
	Count(text string) int
}

type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

// ModelLister reports the models a generation backend can serve.
type ModelLister interface {
	Models(ctx context.Context) ([]Model, error)
}
