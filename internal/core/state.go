package core

import "context"

// GlobalState is what transports and commands share across sessions: the
// active thread of each session and the active model.
type GlobalState interface {
	ActiveThread(ctx context.Context, sessionID string) (Thread, error)
	UseThread(ctx context.Context, sessionID string, threadID int64) (Thread, error)
	NewThread(ctx context.Context, sessionID, name string) (Thread, error)
	ChangeModel(ctx context.Context, model string) error
	CurrentModel() string
}
