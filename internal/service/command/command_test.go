package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	threads map[int64]core.Thread
	active  map[string]int64
	model   string
	nextID  int64
}

func newFakeState() *fakeState {
	return &fakeState{threads: map[int64]core.Thread{}, active: map[string]int64{}, model: "m1"}
}

func (f *fakeState) ActiveThread(ctx context.Context, sessionID string) (core.Thread, error) {
	if id, ok := f.active[sessionID]; ok {
		return f.threads[id], nil
	}
	return f.NewThread(ctx, sessionID, "auto")
}

func (f *fakeState) UseThread(_ context.Context, sessionID string, id int64) (core.Thread, error) {
	t, ok := f.threads[id]
	if !ok {
		return core.Thread{}, core.ErrThreadNotFound
	}
	f.active[sessionID] = id
	return t, nil
}

func (f *fakeState) NewThread(_ context.Context, sessionID, name string) (core.Thread, error) {
	f.nextID++
	t := core.Thread{ID: f.nextID, Name: name, CreatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)}
	f.threads[t.ID] = t
	f.active[sessionID] = t.ID
	return t, nil
}

func (f *fakeState) ChangeModel(_ context.Context, model string) error {
	if model == "bad" {
		return errors.New("no such model")
	}
	f.model = model
	return nil
}

func (f *fakeState) CurrentModel() string { return f.model }

func (f *fakeState) CreateThread(ctx context.Context, name string) (core.Thread, error) {
	return f.NewThread(ctx, "", name)
}

func (f *fakeState) GetThread(_ context.Context, id int64) (core.Thread, error) {
	return f.threads[id], nil
}

func (f *fakeState) ListThreads(context.Context) ([]core.Thread, error) {
	out := make([]core.Thread, 0, len(f.threads))
	for i := f.nextID; i >= 1; i-- {
		out = append(out, f.threads[i])
	}
	return out, nil
}

type fakeMessages struct {
	msgs      []core.Message
	lastLimit int
}

func (f *fakeMessages) AppendMessage(context.Context, int64, core.Message) (int64, error) {
	return 0, nil
}

func (f *fakeMessages) Candidates(context.Context, int64) (core.CandidateSet, error) {
	return core.CandidateSet{}, nil
}

func (f *fakeMessages) History(_ context.Context, _ int64, limit int) ([]core.Message, error) {
	f.lastLimit = limit
	return f.msgs, nil
}

type fakeLog struct {
	stats core.RetrievalStats
}

func (f *fakeLog) Record(context.Context, core.RetrievalEntry) {}

func (f *fakeLog) Stats(context.Context) (core.RetrievalStats, []core.RetrievalEntry, error) {
	return f.stats, nil, nil
}

type fakeModels struct{}

func (fakeModels) Models(context.Context) ([]core.Model, error) {
	return []core.Model{{ID: "llama3"}, {ID: "qwen"}}, nil
}

func newTestRouter() (*Router, *fakeState, *fakeMessages, *fakeLog) {
	st := newFakeState()
	msgs := &fakeMessages{}
	lg := &fakeLog{}
	r := NewRouter(Deps{
		Provider:     "ollama",
		State:        st,
		Models:       fakeModels{},
		Threads:      st,
		Messages:     msgs,
		Retrieval:    lg,
		HistoryLimit: 10,
	})
	return r, st, msgs, lg
}

func TestRouter_NotACommand(t *testing.T) {
	r, _, _, _ := newTestRouter()
	ctx := context.Background()

	_, ok := r.Execute(ctx, "s", "hello there")
	assert.False(t, ok)
	_, ok = r.Execute(ctx, "s", "/")
	assert.False(t, ok)
}

func TestRouter_Unknown(t *testing.T) {
	r, _, _, _ := newTestRouter()

	out, ok := r.Execute(context.Background(), "s", "/nope")
	assert.True(t, ok)
	assert.Equal(t, "Unknown command: /nope", out)
}

func TestRouter_ListSorted(t *testing.T) {
	r, _, _, _ := newTestRouter()

	var names []string
	for _, c := range r.ListCommands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"help", "history", "model", "new", "stats", "threads", "use"}, names)
}

func TestHelp(t *testing.T) {
	r, _, _, _ := newTestRouter()

	out, ok := r.Execute(context.Background(), "s", "/help")
	require.True(t, ok)
	assert.Contains(t, out, "`/use` Switch to an existing thread")
	assert.Contains(t, out, "`/help`")
}

func TestThreadCommands(t *testing.T) {
	r, st, _, _ := newTestRouter()
	ctx := context.Background()

	out, _ := r.Execute(ctx, "s", "/new  trip  planning ")
	assert.Contains(t, out, "trip planning")
	assert.Equal(t, int64(1), st.active["s"])

	_, _ = r.Execute(ctx, "s", "/new other")
	out, _ = r.Execute(ctx, "s", "/threads")
	assert.Contains(t, out, "**other** (active)")
	assert.Contains(t, out, "**trip planning**, 2025-01-02 03:04")

	out, _ = r.Execute(ctx, "s", "/use 1")
	assert.Contains(t, out, "Switched to thread 1")
	assert.Equal(t, int64(1), st.active["s"])

	out, _ = r.Execute(ctx, "s", "/use abc")
	assert.Contains(t, out, "Error: invalid thread id")

	out, _ = r.Execute(ctx, "s", "/use 42")
	assert.Contains(t, out, "Error:")

	out, _ = r.Execute(ctx, "s", "/use")
	assert.Contains(t, out, "Usage")
}

func TestHistoryCommand(t *testing.T) {
	r, _, msgs, _ := newTestRouter()
	ctx := context.Background()

	out, _ := r.Execute(ctx, "s", "/history")
	assert.Contains(t, out, "No messages yet.")
	assert.Equal(t, 10, msgs.lastLimit)

	msgs.msgs = []core.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	out, _ = r.Execute(ctx, "s", "/history 500")
	assert.Equal(t, maxHistory, msgs.lastLimit)
	assert.Contains(t, out, "› **user**: hi\n› **assistant**: hello")

	out, _ = r.Execute(ctx, "s", "/history -1")
	assert.Contains(t, out, "Error: invalid limit")
}

func TestStatsCommand(t *testing.T) {
	r, _, _, lg := newTestRouter()
	ctx := context.Background()

	out, _ := r.Execute(ctx, "s", "/stats")
	assert.Contains(t, out, "No retrievals recorded yet.")

	lg.stats = core.RetrievalStats{
		TotalRetrievals:      4,
		AvgRetrievedMessages: 2.5,
		TotalTokensUsed:      800,
		ThreadsAccessed:      2,
		RetrievalMethods:     map[string]int{core.RetrievalMethodHybrid: 4},
	}
	out, _ = r.Execute(ctx, "s", "/stats")
	assert.Contains(t, out, "**Retrievals**  ›  `4`")
	assert.Contains(t, out, "`2.50`")
	assert.Contains(t, out, "`hybrid_token_limited` × 4")
}

func TestModelCommand(t *testing.T) {
	r, st, _, _ := newTestRouter()
	ctx := context.Background()

	out, _ := r.Execute(ctx, "s", "/model")
	assert.Contains(t, out, "`m1`")
	assert.Contains(t, out, "`qwen`")

	out, _ = r.Execute(ctx, "s", "/model qwen")
	assert.Contains(t, out, "ollama/qwen")
	assert.Equal(t, "qwen", st.model)

	out, _ = r.Execute(ctx, "s", "/model bad")
	assert.Contains(t, out, "no such model")
}

func TestFormatter_Stats(t *testing.T) {
	f := NewResponseFormatter()

	assert.Contains(t, f.Stats(core.RetrievalStats{}), "No retrievals recorded yet.")

	out := f.Stats(core.RetrievalStats{
		TotalRetrievals:      2,
		AvgRetrievedMessages: 1.5,
		TotalTokensUsed:      40,
		ThreadsAccessed:      1,
		RetrievalMethods:     map[string]int{"b": 1, "a": 1},
		Malformed:            3,
	})
	assert.Contains(t, out, "**Retrievals**  ›  `2`")
	assert.Contains(t, out, "`1.50`")
	assert.Contains(t, out, "3 malformed log lines were skipped")
	assert.Less(t, strings.Index(out, "`a`"), strings.Index(out, "`b`"))
}

func TestFormatter_MessagesAndThread(t *testing.T) {
	f := NewResponseFormatter()

	assert.Contains(t, f.Messages("work", nil), "No messages yet.")

	out := f.Messages("work", []core.Message{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	})
	assert.Contains(t, out, "History of work")
	assert.Less(t, strings.Index(out, "**user**: hi"), strings.Index(out, "**assistant**: hello"))

	th := core.Thread{ID: 4, Name: "notes", CreatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)}
	assert.Equal(t, "`4` **notes** (active), 2025-01-02 03:04", f.Thread(th, true))
	assert.NotContains(t, f.Thread(th, false), "active")
}
