package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

type provider interface {
	SetModel(ctx context.Context, model string) error
	GetModel() string
}

// GlobalState maps transport sessions to threads. The mapping lives in
// memory; a session without a thread gets a fresh one on first use.
type GlobalState struct {
	provider provider
	threads  core.ThreadsRepository

	mu       sync.Mutex
	sessions map[string]int64
	now      func() time.Time
}

func NewGlobalState(
	provider provider,
	threads core.ThreadsRepository,
) *GlobalState {
	return &GlobalState{
		provider: provider,
		threads:  threads,
		sessions: make(map[string]int64),
		now:      time.Now,
	}
}

func (s *GlobalState) ActiveThread(ctx context.Context, sessionID string) (core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.sessions[sessionID]; ok {
		return s.threads.GetThread(ctx, id)
	}

	name := fmt.Sprintf("%s %s", sessionID, s.now().Format("2006-01-02 15:04"))
	t, err := s.threads.CreateThread(ctx, name)
	if err != nil {
		return core.Thread{}, err
	}
	s.sessions[sessionID] = t.ID

	log.FromCtx(ctx).Info().Str("session", sessionID).Int64("thread_id", t.ID).Msg("thread started for session")
	return t, nil
}

func (s *GlobalState) UseThread(ctx context.Context, sessionID string, threadID int64) (core.Thread, error) {
	t, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return core.Thread{}, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = t.ID
	s.mu.Unlock()
	return t, nil
}

func (s *GlobalState) NewThread(ctx context.Context, sessionID, name string) (core.Thread, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("%s %s", sessionID, s.now().Format("2006-01-02 15:04"))
	}

	t, err := s.threads.CreateThread(ctx, name)
	if err != nil {
		return core.Thread{}, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = t.ID
	s.mu.Unlock()
	return t, nil
}

func (s *GlobalState) ChangeModel(ctx context.Context, model string) error {
	return s.provider.SetModel(ctx, model)
}

func (s *GlobalState) CurrentModel() string {
	return s.provider.GetModel()
}
