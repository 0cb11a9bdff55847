package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

type NewThreadCommand struct {
	state     core.GlobalState
	formatter *ResponseFormatter
}

func NewNewThreadCommand(state core.GlobalState) *NewThreadCommand {
	return &NewThreadCommand{state: state, formatter: NewResponseFormatter()}
}

func (c *NewThreadCommand) Name() string {
	return "new"
}

func (c *NewThreadCommand) Description() string {
	return "Start a new thread"
}

func (c *NewThreadCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	t, err := c.state.NewThread(ctx, sessionID, strings.Join(args, " "))
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}

	return c.formatter.Combine(
		c.formatter.Success("Thread started"),
		c.formatter.Label("ID", strconv.FormatInt(t.ID, 10)),
		c.formatter.Label("Name", t.Name),
	), nil
}

type ThreadsCommand struct {
	threads   core.ThreadsRepository
	state     core.GlobalState
	formatter *ResponseFormatter
}

func NewThreadsCommand(threads core.ThreadsRepository, state core.GlobalState) *ThreadsCommand {
	return &ThreadsCommand{threads: threads, state: state, formatter: NewResponseFormatter()}
}

func (c *ThreadsCommand) Name() string {
	return "threads"
}

func (c *ThreadsCommand) Description() string {
	return "List threads"
}

func (c *ThreadsCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	threads, err := c.threads.ListThreads(ctx)
	if err != nil {
		return "", err
	}

	if len(threads) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Threads"),
			c.formatter.Tip("Start one with /new <name>"),
		), nil
	}

	active, _ := c.state.ActiveThread(ctx, sessionID)

	items := make([]string, len(threads))
	for i, t := range threads {
		items[i] = c.formatter.Thread(t, t.ID == active.ID)
	}

	return c.formatter.Combine(
		c.formatter.Info("Threads"),
		c.formatter.List(items),
		c.formatter.Usage("/use <id>"),
	), nil
}

type UseCommand struct {
	state     core.GlobalState
	formatter *ResponseFormatter
}

func NewUseCommand(state core.GlobalState) *UseCommand {
	return &UseCommand{state: state, formatter: NewResponseFormatter()}
}

func (c *UseCommand) Name() string {
	return "use"
}

func (c *UseCommand) Description() string {
	return "Switch to an existing thread"
}

func (c *UseCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Combine(
			c.formatter.Usage("/use <thread id>"),
			c.formatter.Tip("List threads with /threads"),
		), nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid thread id: %s", args[0])
	}

	t, err := c.state.UseThread(ctx, sessionID, id)
	if err != nil {
		return "", err
	}

	return c.formatter.Success(fmt.Sprintf("Switched to thread %d: %s", t.ID, t.Name)), nil
}
