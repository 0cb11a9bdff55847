package command

import (
	"context"

	"github.com/sandevgo/recall/internal/core"
)

type StatsCommand struct {
	retrieval core.RetrievalLog
	formatter *ResponseFormatter
}

func NewStatsCommand(retrieval core.RetrievalLog) *StatsCommand {
	return &StatsCommand{retrieval: retrieval, formatter: NewResponseFormatter()}
}

func (c *StatsCommand) Name() string {
	return "stats"
}

func (c *StatsCommand) Description() string {
	return "Show retrieval statistics"
}

func (c *StatsCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	stats, _, err := c.retrieval.Stats(ctx)
	if err != nil {
		return "", err
	}

	return c.formatter.Stats(stats), nil
}
