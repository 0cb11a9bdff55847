package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/recall/internal/core"
)

const maxHistory = 100

type HistoryCommand struct {
	messages     core.MessagesRepository
	state        core.GlobalState
	defaultLimit int
	formatter    *ResponseFormatter
}

func NewHistoryCommand(messages core.MessagesRepository, state core.GlobalState, defaultLimit int) *HistoryCommand {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &HistoryCommand{
		messages:     messages,
		state:        state,
		defaultLimit: defaultLimit,
		formatter:    NewResponseFormatter(),
	}
}

func (c *HistoryCommand) Name() string {
	return "history"
}

func (c *HistoryCommand) Description() string {
	return "Show recent messages of the active thread"
}

func (c *HistoryCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	limit := c.defaultLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid limit: %s", args[0])
		}
		limit = min(n, maxHistory)
	}

	t, err := c.state.ActiveThread(ctx, sessionID)
	if err != nil {
		return "", err
	}

	msgs, err := c.messages.History(ctx, t.ID, limit)
	if err != nil {
		return "", err
	}

	return c.formatter.Messages(t.Name, msgs), nil
}
