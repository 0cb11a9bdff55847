package core

import "context"

// CmdRouter dispatches slash commands typed into any transport.
type CmdRouter interface {
	// Execute runs input when it names a known command. The bool is false for
	// plain chat input, which the caller sends to the chat service instead.
	Execute(ctx context.Context, sessionID, input string) (string, bool)
	ListCommands() []Command
}

// Command is one slash command. Replies are Markdown scoped to a session.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, sessionID string, args []string) (string, error)
}
