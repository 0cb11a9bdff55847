package srv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name  string
	start func(ctx context.Context) error
	mu    *sync.Mutex
	order *[]string
}

func (s *recordingService) Start(ctx context.Context) error {
	return s.start(ctx)
}

func (s *recordingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.order = append(*s.order, s.name)
	return nil
}

func TestRun_StopsWhenServiceReturns(t *testing.T) {
	var mu sync.Mutex
	var order []string
	blocking := func(ctx context.Context) error { <-ctx.Done(); return nil }

	services := []Service{
		&recordingService{name: "db", start: blocking, mu: &mu, order: &order},
		&recordingService{name: "repl", start: func(ctx context.Context) error { return nil }, mu: &mu, order: &order},
	}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), services) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after a service finished")
	}

	assert.Equal(t, []string{"repl", "db"}, order, "shutdown runs in reverse order")
}

func TestRun_ReturnsFirstError(t *testing.T) {
	var mu sync.Mutex
	var order []string
	boom := errors.New("boom")

	services := []Service{
		&recordingService{name: "bot", start: func(ctx context.Context) error { return boom }, mu: &mu, order: &order},
	}

	err := Run(context.Background(), services)
	assert.ErrorIs(t, err, boom)
}

func TestCleanup_RunsOnShutdown(t *testing.T) {
	called := false
	svc := NewCleanup(func() error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Shutdown(ctx))
	assert.True(t, called)
}
