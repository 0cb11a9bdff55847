package transport

import (
	"context"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

// Handler routes a line of user input either to a slash command or to a chat
// turn in the session's active thread. Replies are Markdown.
type Handler struct {
	chat   core.Chat
	router core.CmdRouter
	state  core.GlobalState
}

func NewHandler(chat core.Chat, router core.CmdRouter, state core.GlobalState) *Handler {
	return &Handler{
		chat:   chat,
		router: router,
		state:  state,
	}
}

func (h *Handler) Handle(ctx context.Context, sessionID, userID, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	if out, ok := h.router.Execute(ctx, sessionID, input); ok {
		return out, nil
	}

	thread, err := h.state.ActiveThread(ctx, sessionID)
	if err != nil {
		return "", err
	}

	res, err := h.chat.Turn(ctx, thread.ID, userID, input)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

// IsExit reports whether input asks an interactive session to end.
func IsExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "/bye":
		return true
	}
	return false
}
