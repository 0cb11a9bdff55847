package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

type Memory struct {
	cfg          *config.RetrievalConfig
	msgRepo      core.MessagesRepository
	embedder     core.Embedder
	counter      core.TokenCounter
	embedTimeout time.Duration
	now          func() time.Time
}

func NewMemory(
	cfg *config.RetrievalConfig,
	msgRepo core.MessagesRepository,
	embedder core.Embedder,
	counter core.TokenCounter,
	embedTimeout time.Duration,
) *Memory {
	return &Memory{
		cfg:          cfg,
		msgRepo:      msgRepo,
		embedder:     embedder,
		counter:      counter,
		embedTimeout: embedTimeout,
		now:          time.Now,
	}
}

// BuildContext selects the prior turns of a thread most relevant to query
// that fit the token budget, best first. A thread with nothing stored yields
// an empty result.
func (m *Memory) BuildContext(ctx context.Context, threadID int64, query string, opts core.ContextOptions) (*core.ContextResult, error) {
	logger := log.FromCtx(ctx).With().Int64("thread_id", threadID).Logger()

	budget := opts.MaxTokens
	if budget <= 0 {
		budget = m.cfg.MaxTokens
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = m.cfg.TopK
	}
	weights := m.cfg.Weights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	set, err := m.msgRepo.Candidates(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	result := &core.ContextResult{
		Turns:      []core.Turn{},
		TokensUsed: m.counter.Count(query),
		Skipped:    set.Skipped,
	}
	if len(set.Candidates) == 0 {
		logger.Debug().Int("skipped", set.Skipped).Msg("no retrieval candidates")
		return result, nil
	}

	queryVec := opts.QueryEmbedding
	if len(queryVec) == 0 {
		queryVec, err = m.embed(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	scored, mismatched := Score(set.Candidates, queryVec, weights, m.now())
	Rank(scored)
	sel := Select(scored, query, budget, topK, m.counter)

	result.Turns = sel.Turns
	result.TokensUsed = sel.Used
	result.Considered = len(scored)
	result.Skipped += mismatched

	logger.Debug().
		Int("considered", result.Considered).
		Int("selected", len(result.Turns)).
		Int("skipped", result.Skipped).
		Int("tokens", result.TokensUsed).
		Int("budget", budget).
		Msg("context built")

	return result, nil
}

func (m *Memory) embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.embedTimeout)
		defer cancel()
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}
