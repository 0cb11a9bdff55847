package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	set core.CandidateSet
	err error
}

func (f *fakeMessages) AppendMessage(context.Context, int64, core.Message) (int64, error) {
	return 0, nil
}

func (f *fakeMessages) Candidates(context.Context, int64) (core.CandidateSet, error) {
	return f.set, f.err
}

func (f *fakeMessages) History(context.Context, int64, int) ([]core.Message, error) {
	return nil, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
	delay time.Duration
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vec, f.err
}

func testConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		SemanticWeight: 0.7,
		RecencyWeight:  0.3,
		MaxTokens:      2000,
		TopK:           20,
		Tokenizer:      tokens.Approx,
	}
}

func newTestMemory(msgs *fakeMessages, emb *fakeEmbedder) *Memory {
	m := NewMemory(testConfig(), msgs, emb, tokens.ApproxCounter{}, time.Second)
	m.now = func() time.Time { return now }
	return m
}

func TestBuildContext_EmptyThread(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	m := newTestMemory(&fakeMessages{}, emb)

	res, err := m.BuildContext(context.Background(), 7, "anything", core.ContextOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Turns)
	assert.Zero(t, res.Considered)
	assert.Zero(t, emb.calls, "no candidates, no embedding call")
}

func TestBuildContext_RanksAndPacks(t *testing.T) {
	msgs := &fakeMessages{set: core.CandidateSet{
		Candidates: []core.Candidate{
			{ID: 1, Role: "user", Content: "we deploy with helm", Embedding: []float32{1, 0}, CreatedAt: now.Add(-48 * time.Hour)},
			{ID: 2, Role: "assistant", Content: "lunch was pasta", Embedding: []float32{0, 1}, CreatedAt: now.Add(-time.Hour)},
			{ID: 3, Role: "user", Content: "broken", Embedding: []float32{1, 0, 0}, CreatedAt: now},
		},
		Skipped: 2,
	}}
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	m := newTestMemory(msgs, emb)

	res, err := m.BuildContext(context.Background(), 1, "how do we deploy?", core.ContextOptions{})
	require.NoError(t, err)
	require.Len(t, res.Turns, 2)
	assert.Equal(t, "we deploy with helm", res.Turns[0].Content)
	assert.Equal(t, 2, res.Considered)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 1, emb.calls)

	c := tokens.ApproxCounter{}
	want := c.Count("how do we deploy?") + c.Count("user: we deploy with helm") + c.Count("assistant: lunch was pasta")
	assert.Equal(t, want, res.TokensUsed)
}

func TestBuildContext_OptionsOverride(t *testing.T) {
	msgs := &fakeMessages{set: core.CandidateSet{Candidates: []core.Candidate{
		{ID: 1, Role: "user", Content: "semantic match", Embedding: []float32{1, 0}, CreatedAt: now.Add(-100 * time.Hour)},
		{ID: 2, Role: "user", Content: "fresh", Embedding: []float32{0, 1}, CreatedAt: now},
	}}}
	emb := &fakeEmbedder{vec: []float32{9, 9}}
	m := newTestMemory(msgs, emb)

	res, err := m.BuildContext(context.Background(), 1, "q", core.ContextOptions{
		TopK:           1,
		Weights:        &core.Weights{Semantic: 0, Recency: 1},
		QueryEmbedding: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
	assert.Equal(t, "fresh", res.Turns[0].Content)
	assert.Zero(t, emb.calls, "supplied query embedding is reused")
}

func TestBuildContext_BudgetFromOptions(t *testing.T) {
	msgs := &fakeMessages{set: core.CandidateSet{Candidates: []core.Candidate{
		{ID: 1, Role: "user", Content: strings.Repeat("b", 174), Embedding: []float32{1, 0}, CreatedAt: now},
		{ID: 2, Role: "user", Content: strings.Repeat("s", 14), Embedding: []float32{0.5, 0}, CreatedAt: now},
	}}}
	m := newTestMemory(msgs, &fakeEmbedder{vec: []float32{1, 0}})

	res, err := m.BuildContext(context.Background(), 1, strings.Repeat("q", 40), core.ContextOptions{MaxTokens: 50})
	require.NoError(t, err)
	assert.Empty(t, res.Turns)
	assert.Equal(t, 10, res.TokensUsed)
}

func TestBuildContext_EmbedFailurePropagates(t *testing.T) {
	boom := errors.New("backend down")
	msgs := &fakeMessages{set: core.CandidateSet{Candidates: []core.Candidate{
		{ID: 1, Role: "user", Content: "x", Embedding: []float32{1}, CreatedAt: now},
	}}}
	m := newTestMemory(msgs, &fakeEmbedder{err: boom})

	_, err := m.BuildContext(context.Background(), 1, "q", core.ContextOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestBuildContext_EmbedTimeout(t *testing.T) {
	msgs := &fakeMessages{set: core.CandidateSet{Candidates: []core.Candidate{
		{ID: 1, Role: "user", Content: "x", Embedding: []float32{1}, CreatedAt: now},
	}}}
	m := newTestMemory(msgs, &fakeEmbedder{vec: []float32{1}, delay: time.Second})
	m.embedTimeout = 10 * time.Millisecond

	_, err := m.BuildContext(context.Background(), 1, "q", core.ContextOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildContext_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("disk")
	m := newTestMemory(&fakeMessages{err: boom}, &fakeEmbedder{})

	_, err := m.BuildContext(context.Background(), 1, "q", core.ContextOptions{})
	assert.ErrorIs(t, err, boom)
}
