package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/internal/service/memory"
	"github.com/sandevgo/recall/internal/storage/sqlite"
	"github.com/sandevgo/recall/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	threads  []core.Thread
	messages []core.Message
}

func (m *memStore) CreateThread(_ context.Context, name string) (core.Thread, error) {
	t := core.Thread{ID: int64(len(m.threads) + 1), Name: name, CreatedAt: time.Unix(0, 0).UTC()}
	m.threads = append(m.threads, t)
	return t, nil
}

func (m *memStore) GetThread(_ context.Context, id int64) (core.Thread, error) {
	for _, t := range m.threads {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Thread{}, &core.StorageError{Op: "get thread", Err: core.ErrThreadNotFound}
}

func (m *memStore) ListThreads(context.Context) ([]core.Thread, error) {
	return m.threads, nil
}

func (m *memStore) AppendMessage(ctx context.Context, threadID int64, msg core.Message) (int64, error) {
	if _, err := m.GetThread(ctx, threadID); err != nil {
		return 0, err
	}
	msg.ID = int64(len(m.messages) + 1)
	msg.ThreadID = threadID
	m.messages = append(m.messages, msg)
	return msg.ID, nil
}

func (m *memStore) Candidates(context.Context, int64) (core.CandidateSet, error) {
	return core.CandidateSet{}, nil
}

func (m *memStore) History(_ context.Context, threadID int64, limit int) ([]core.Message, error) {
	var out []core.Message
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fixedEmbedder struct{ calls int }

func (f *fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, nil
}

type fakeMemory struct{ opts core.ContextOptions }

func (f *fakeMemory) BuildContext(_ context.Context, _ int64, query string, opts core.ContextOptions) (*core.ContextResult, error) {
	f.opts = opts
	return &core.ContextResult{
		Turns:      []core.Turn{{Role: core.RoleUser, Content: "earlier"}},
		TokensUsed: len(query) / 4,
	}, nil
}

type fakeChat struct{}

func (fakeChat) Turn(_ context.Context, threadID int64, _, input string) (*core.TurnResult, error) {
	return &core.TurnResult{ThreadID: threadID, UserMessage: input, Response: "ok"}, nil
}

type fakeLog struct{ entries []core.RetrievalEntry }

func (f *fakeLog) Record(_ context.Context, e core.RetrievalEntry) {
	f.entries = append(f.entries, e)
}

func (*fakeLog) Stats(context.Context) (core.RetrievalStats, []core.RetrievalEntry, error) {
	return core.RetrievalStats{TotalRetrievals: 3, ThreadsAccessed: 2, RetrievalMethods: map[string]int{}}, nil, nil
}

type harness struct {
	srv      *Server
	store    *memStore
	embedder *fixedEmbedder
	memory   *fakeMemory
	log      *fakeLog
}

func newHarness() *harness {
	h := &harness{store: &memStore{}, embedder: &fixedEmbedder{}, memory: &fakeMemory{}, log: &fakeLog{}}
	h.srv = NewServer(Deps{
		Threads:   h.store,
		Messages:  h.store,
		Memory:    h.memory,
		Chat:      fakeChat{},
		Embedder:  h.embedder,
		Retrieval: h.log,
	}, &bytes.Buffer{}, &bytes.Buffer{})
	return h
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestCreateAndListThreads(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.srv.createThread(ctx, call(map[string]any{"name": "work"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var thread core.Thread
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &thread))
	assert.Equal(t, int64(1), thread.ID)
	assert.Equal(t, "work", thread.Name)

	res, err = h.srv.listThreads(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"thread_name": "work"`)

	res, err = h.srv.createThread(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAppendMessage(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.store.CreateThread(ctx, "t")

	res, err := h.srv.appendMessage(ctx, call(map[string]any{"thread_id": float64(1), "role": "user", "content": "hi"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, 1, h.embedder.calls)
	assert.Equal(t, []float32{1, 0}, h.store.messages[0].Embedding)

	res, err = h.srv.appendMessage(ctx, call(map[string]any{"thread_id": float64(1), "role": "system", "content": "note"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 1, h.embedder.calls)
	assert.Nil(t, h.store.messages[1].Embedding)

	res, err = h.srv.appendMessage(ctx, call(map[string]any{"thread_id": float64(1), "role": "robot", "content": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.srv.appendMessage(ctx, call(map[string]any{"thread_id": float64(9), "role": "user", "content": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "thread not found")

	res, err = h.srv.appendMessage(ctx, call(map[string]any{"thread_id": 1.5, "role": "user", "content": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestThreadHistory(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.store.CreateThread(ctx, "t")
	for _, c := range []string{"one", "two", "three"} {
		_, _ = h.store.AppendMessage(ctx, 1, core.Message{Role: core.RoleUser, Content: c})
	}

	res, err := h.srv.threadHistory(ctx, call(map[string]any{"thread_id": float64(1), "limit": float64(2)}))
	require.NoError(t, err)
	out := text(t, res)
	assert.NotContains(t, out, `"one"`)
	assert.Contains(t, out, `"two"`)
	assert.Contains(t, out, `"three"`)
}

func TestBuildContextPassesOverrides(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, _ = h.store.CreateThread(ctx, "t")

	res, err := h.srv.buildContext(ctx, call(map[string]any{
		"thread_id":  float64(1),
		"query":      "what did I say",
		"top_k":      float64(5),
		"max_tokens": float64(300),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 5, h.memory.opts.TopK)
	assert.Equal(t, 300, h.memory.opts.MaxTokens)
	assert.Contains(t, text(t, res), "earlier")

	require.Len(t, h.store.messages, 1)
	assert.Equal(t, core.RoleUser, h.store.messages[0].Role)
	assert.Equal(t, "what did I say", h.store.messages[0].Content)
	assert.NotNil(t, h.store.messages[0].Embedding)

	require.Len(t, h.log.entries, 1)
	assert.Equal(t, int64(1), h.log.entries[0].ThreadID)
	assert.Equal(t, 1, h.log.entries[0].RetrievedCount)
	assert.Equal(t, core.RetrievalMethodHybrid, h.log.entries[0].RetrievalMethod)
}

func TestBuildContextUnknownThread(t *testing.T) {
	h := newHarness()
	res, err := h.srv.buildContext(context.Background(), call(map[string]any{
		"thread_id": float64(7),
		"query":     "anything",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "thread not found")
	assert.Empty(t, h.log.entries)
}

func TestBuildContextKeepsLatestTurn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := sqlite.NewDB(ctx, filepath.Join(dir, "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	threads := sqlite.NewThreadsRepo(db)
	messages := sqlite.NewMessagesRepo(db)
	emb := &fixedEmbedder{}
	cfg := &config.RetrievalConfig{
		SemanticWeight: 0.7,
		RecencyWeight:  0.3,
		MaxTokens:      2000,
		TopK:           20,
		Tokenizer:      tokens.Approx,
		PreviewSize:    3,
	}
	retrieval := analytics.NewLogger(filepath.Join(dir, "retrieval_log.jsonl"))

	srv := NewServer(Deps{
		Threads:   threads,
		Messages:  messages,
		Memory:    memory.NewMemory(cfg, messages, emb, tokens.ApproxCounter{}, time.Second),
		Chat:      fakeChat{},
		Embedder:  emb,
		Retrieval: retrieval,
	}, &bytes.Buffer{}, &bytes.Buffer{})

	thread, err := threads.CreateThread(ctx, "names")
	require.NoError(t, err)
	for _, m := range []struct{ role, content string }{
		{core.RoleUser, "my name is Ann"},
		{core.RoleAssistant, "hi Ann, noted"},
	} {
		res, err := srv.appendMessage(ctx, call(map[string]any{
			"thread_id": float64(thread.ID), "role": m.role, "content": m.content,
		}))
		require.NoError(t, err)
		require.False(t, res.IsError, text(t, res))
	}

	res, err := srv.buildContext(ctx, call(map[string]any{
		"thread_id": float64(thread.ID),
		"query":     "what is my name?",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out core.ContextResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.ElementsMatch(t, []core.Turn{
		{Role: core.RoleUser, Content: "my name is Ann"},
		{Role: core.RoleAssistant, Content: "hi Ann, noted"},
	}, out.Turns)

	history, err := messages.History(ctx, thread.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "what is my name?", history[2].Content)

	stats, _, err := retrieval.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRetrievals)
	assert.Equal(t, 1, stats.ThreadsAccessed)
}

func TestChatAndAnalytics(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.srv.chat(ctx, call(map[string]any{"thread_id": float64(2), "message": "hello"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"assistant_response": "ok"`)

	res, err = h.srv.analytics(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"total_retrievals": 3`)
	assert.Contains(t, text(t, res), `"threads_accessed": 2`)
}
