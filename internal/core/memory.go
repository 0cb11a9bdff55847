package core

import "context"

type Memory interface {
	BuildContext(ctx context.Context, threadID int64, query string, opts ContextOptions) (*ContextResult, error)
}

type Chat interface {
	Turn(ctx context.Context, threadID int64, userID, input string) (*TurnResult, error)
}
