package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/internal/service/memory"
	"github.com/sandevgo/recall/internal/storage/sqlite"
	"github.com/sandevgo/recall/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto two axes so similarity is predictable.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, text)
	if k.err != nil {
		return nil, k.err
	}
	if strings.Contains(strings.ToLower(text), "pizza") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type scriptedGenerator struct {
	prompts []string
	reply   string
	err     error
	delay   time.Duration
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

type harness struct {
	svc      *Service
	threads  *sqlite.ThreadsRepo
	messages *sqlite.MessagesRepo
	log      *analytics.Logger
	emb      *keywordEmbedder
	gen      *scriptedGenerator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(dir, "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		threads:  sqlite.NewThreadsRepo(db),
		messages: sqlite.NewMessagesRepo(db),
		log:      analytics.NewLogger(filepath.Join(dir, "retrievals.jsonl")),
		emb:      &keywordEmbedder{},
		gen:      &scriptedGenerator{reply: "noted"},
	}

	rcfg := &config.RetrievalConfig{SemanticWeight: 0.7, RecencyWeight: 0.3, MaxTokens: 2000, TopK: 20, PreviewSize: 3}
	counter := tokens.ApproxCounter{}
	mem := memory.NewMemory(rcfg, h.messages, h.emb, counter, time.Second)

	h.svc = NewService(h.threads, h.messages, mem, h.emb, h.gen, counter, h.log, NewPrompter(""), Options{
		EmbedTimeout:    time.Second,
		GenerateTimeout: time.Second,
		PreviewSize:     rcfg.PreviewSize,
	})
	return h
}

func (h *harness) thread(t *testing.T) int64 {
	th, err := h.threads.CreateThread(context.Background(), "chat")
	require.NoError(t, err)
	return th.ID
}

func TestTurn_FirstTurnHasNoContext(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)

	res, err := h.svc.Turn(context.Background(), id, "u1", "  I love pizza  ")
	require.NoError(t, err)
	assert.Equal(t, "I love pizza", res.UserMessage)
	assert.Equal(t, "noted", res.Response)
	assert.Zero(t, res.RetrievedCount)
	assert.NotEmpty(t, res.TurnID)
	assert.NotContains(t, h.gen.prompts[0], "Conversation History")
	assert.Equal(t, tokens.ApproxCounter{}.Count(h.gen.prompts[0]), res.TokenCount)

	history, err := h.messages.History(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "u1", history[0].UserID)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
}

func TestTurn_RetrievesRelevantTurnsAndLogs(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)
	ctx := context.Background()

	_, err := h.svc.Turn(ctx, id, "", "My favourite food is pizza")
	require.NoError(t, err)
	_, err = h.svc.Turn(ctx, id, "", "The weather is nice")
	require.NoError(t, err)

	h.gen.reply = "You like pizza."
	res, err := h.svc.Turn(ctx, id, "", "What pizza should I order?")
	require.NoError(t, err)
	assert.Equal(t, 4, res.RetrievedCount)

	prompt := h.gen.prompts[len(h.gen.prompts)-1]
	assert.Less(t, strings.Index(prompt, "My favourite food is pizza"), strings.Index(prompt, "The weather is nice"),
		"the semantically closer turn ranks first")
	assert.Equal(t, 1, strings.Count(prompt, "What pizza should I order?"), "the query is not part of its own context")

	stats, entries, err := h.log.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRetrievals)
	assert.Equal(t, 1, stats.ThreadsAccessed)
	assert.Equal(t, map[string]int{core.RetrievalMethodHybrid: 3}, stats.RetrievalMethods)

	last := entries[len(entries)-1]
	assert.Equal(t, res.TurnID, last.EventID)
	assert.Equal(t, res.TokenCount, last.TokenCount)
	assert.Equal(t, len("You like pizza."), last.ResponseLength)
	assert.Len(t, last.ContextPreview, 3)
}

func TestTurn_UnknownThread(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Turn(context.Background(), 404, "", "hello")
	assert.ErrorIs(t, err, core.ErrThreadNotFound)
	assert.Empty(t, h.emb.calls)
}

func TestTurn_EmptyInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Turn(context.Background(), h.thread(t), "", "   ")
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestTurn_GenerateFailureStoresOnlyUserMessage(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)
	boom := errors.New("model offline")
	h.gen.err = boom

	_, err := h.svc.Turn(context.Background(), id, "", "hello")
	assert.ErrorIs(t, err, boom)

	history, err := h.messages.History(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.RoleUser, history[0].Role)

	stats, _, err := h.log.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRetrievals)
}

func TestTurn_GenerateTimeout(t *testing.T) {
	h := newHarness(t)
	h.svc.opts.GenerateTimeout = 10 * time.Millisecond
	h.gen.delay = time.Second

	_, err := h.svc.Turn(context.Background(), h.thread(t), "", "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTurn_EmbedFailure(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)
	h.emb.err = errors.New("embedder down")

	_, err := h.svc.Turn(context.Background(), id, "", "hello")
	assert.ErrorContains(t, err, "embedder down")

	history, err := h.messages.History(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTurn_EmptyResponseNotStored(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)
	h.gen.reply = "  "

	res, err := h.svc.Turn(context.Background(), id, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "  ", res.Response)

	history, err := h.messages.History(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTurnWithOptions_TopKOverride(t *testing.T) {
	h := newHarness(t)
	id := h.thread(t)
	ctx := context.Background()

	_, err := h.svc.Turn(ctx, id, "", "My favourite food is pizza")
	require.NoError(t, err)
	_, err = h.svc.Turn(ctx, id, "", "The weather is nice")
	require.NoError(t, err)

	res, err := h.svc.TurnWithOptions(ctx, id, "", "Any pizza tips?", core.TurnOptions{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RetrievedCount)
	assert.Contains(t, h.gen.prompts[len(h.gen.prompts)-1], "My favourite food is pizza")
}
