package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/recall/pkg/log"
)

// Embedder turns a message into one unit-length vector. Long messages are
// chunked, embedded in a single batch and mean-pooled.
type Embedder struct {
	backend Backend
	chunker *Chunker
}

func NewEmbedder(backend Backend, chunker *Chunker) *Embedder {
	return &Embedder{
		backend: backend,
		chunker: chunker,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("failed to embed: empty text")
	}

	inputs := []string{text}
	if e.chunker != nil {
		if chunks := e.chunker.Split(text); len(chunks) > 1 {
			inputs = make([]string, len(chunks))
			for i, c := range chunks {
				inputs[i] = c.Text
			}
			log.FromCtx(ctx).Debug().Int("chunks", len(chunks)).Msg("embedding chunked text")
		}
	}

	vecs, err := e.backend.EmbedBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}

	vec, err := MeanPool(vecs)
	if err != nil {
		return nil, fmt.Errorf("failed to pool embeddings: %w", err)
	}
	return vec, nil
}
