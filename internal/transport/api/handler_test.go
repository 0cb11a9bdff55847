package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/internal/service/auth"
	"github.com/sandevgo/recall/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	userID string
	opts   core.TurnOptions
}

func (f *fakeChat) TurnWithOptions(_ context.Context, threadID int64, userID, input string, opts core.TurnOptions) (*core.TurnResult, error) {
	f.userID, f.opts = userID, opts
	if strings.TrimSpace(input) == "" {
		return nil, core.ErrEmptyContent
	}
	if threadID == 404 {
		return nil, &core.StorageError{Op: "get thread", Err: core.ErrThreadNotFound}
	}
	return &core.TurnResult{ThreadID: threadID, UserMessage: input, Response: "hi there", RetrievedCount: 2, TokenCount: 40}, nil
}

type testAPI struct {
	server   *httptest.Server
	keys     *auth.KeyStore
	chat     *fakeChat
	messages *sqlite.MessagesRepo
	key      string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(dir, "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := &testAPI{
		keys:     auth.NewKeyStore(filepath.Join(dir, "api_keys.json"), true),
		chat:     &fakeChat{},
		messages: sqlite.NewMessagesRepo(db),
	}
	a.key, err = a.keys.Generate(ctx, "alice", "test", 0)
	require.NoError(t, err)

	h := NewHandler(
		sqlite.NewThreadsRepo(db),
		a.messages,
		a.chat,
		analytics.NewLogger(filepath.Join(dir, "retrievals.jsonl")),
		a.keys,
		func() string { return "test-model" },
	)
	a.server = httptest.NewServer(h.Routes())
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, key, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestAuth(t *testing.T) {
	a := newTestAPI(t)

	resp, out := a.do(t, http.MethodGet, "/threads/list", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, out["detail"], apiKeyHeader)

	resp, _ = a.do(t, http.MethodGet, "/threads/list", "recall_bogus", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, out = a.do(t, http.MethodGet, "/auth/status", a.key, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", out["user_id"])
	assert.Equal(t, true, out["authenticated"])

	resp, out = a.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test-model", out["model"])
}

func TestThreadsAndHistory(t *testing.T) {
	a := newTestAPI(t)

	resp, out := a.do(t, http.MethodPost, "/threads/create", a.key, `{"thread_name":"work"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := int64(out["thread_id"].(float64))
	assert.Equal(t, "work", out["thread_name"])

	resp, _ = a.do(t, http.MethodPost, "/threads/create", a.key, `{"thread_name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/threads/create", a.key, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = a.do(t, http.MethodGet, "/threads/list", a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["threads"], 1)

	ctx := context.Background()
	for _, c := range []string{"first", "second", "third"} {
		_, err := a.messages.AppendMessage(ctx, id, core.Message{Role: core.RoleUser, Content: c, Embedding: []float32{1}})
		require.NoError(t, err)
	}

	resp, out = a.do(t, http.MethodGet, "/threads/1/history?limit=2", a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), out["count"])
	msgs := out["messages"].([]any)
	assert.Equal(t, "second", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "third", msgs[1].(map[string]any)["content"])

	resp, _ = a.do(t, http.MethodGet, "/threads/abc/history", a.key, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/threads/1/history?limit=-1", a.key, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = a.do(t, http.MethodGet, "/threads/1/history?limit=2000000000", a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), out["count"])
}

func TestChat(t *testing.T) {
	a := newTestAPI(t)

	resp, out := a.do(t, http.MethodPost, "/chat", a.key, `{"thread_id":3,"message":"hello","max_tokens":500,"top_k":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi there", out["assistant_response"])
	assert.Equal(t, float64(2), out["retrieved_messages"])
	assert.Equal(t, "alice", a.chat.userID)
	assert.Equal(t, core.TurnOptions{TopK: 4, MaxTokens: 500}, a.chat.opts)

	resp, _ = a.do(t, http.MethodPost, "/chat", a.key, `{"thread_id":404,"message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/chat", a.key, `{"thread_id":3,"message":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/chat", a.key, `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyticsEmpty(t *testing.T) {
	a := newTestAPI(t)

	resp, out := a.do(t, http.MethodGet, "/analytics", a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), out["total_retrievals"])
	assert.Equal(t, map[string]any{}, out["retrieval_methods"])
}

func TestKeyLifecycle(t *testing.T) {
	a := newTestAPI(t)

	resp, out := a.do(t, http.MethodPost, "/auth/generate-key", "", `{"user_id":"alice","name":"second"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := out["api_key"].(string)
	assert.True(t, strings.HasPrefix(second, auth.KeyPrefix))

	resp, _ = a.do(t, http.MethodPost, "/auth/generate-key", "", `{"name":"anon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = a.do(t, http.MethodGet, "/auth/keys", a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), out["count"])

	resp, _ = a.do(t, http.MethodPost, "/auth/revoke-key?api_key="+second, a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/auth/status", second, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/auth/delete-key?api_key="+second, a.key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/auth/delete-key?api_key="+second, a.key, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
