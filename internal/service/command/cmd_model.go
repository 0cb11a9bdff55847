package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/recall/internal/core"
)

type ModelCommand struct {
	provider  string
	state     core.GlobalState
	models    core.ModelLister
	formatter *ResponseFormatter
}

func NewModelCommand(
	provider string,
	state core.GlobalState,
	models core.ModelLister,
) *ModelCommand {
	return &ModelCommand{
		provider:  provider,
		state:     state,
		models:    models,
		formatter: NewResponseFormatter(),
	}
}

func (c *ModelCommand) Name() string {
	return "model"
}

func (c *ModelCommand) Description() string {
	return "Show or change current model"
}

func (c *ModelCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	if len(args) == 0 {
		sections := []string{
			c.formatter.Info("Current Model"),
			c.formatter.Label("Provider", c.provider),
			c.formatter.Label("Model", c.state.CurrentModel()),
		}

		if models, err := c.models.Models(ctx); err == nil && len(models) > 0 {
			names := make([]string, 0, min(len(models), 20))
			for _, m := range models[:min(len(models), 20)] {
				names = append(names, fmt.Sprintf("`%s`", m.ID))
			}
			sections = append(sections, c.formatter.Section("📦", "Available", c.formatter.List(names)))
		}

		sections = append(sections, c.formatter.Usage("/model <model>"))
		return c.formatter.Combine(sections...), nil
	}

	if err := c.state.ChangeModel(ctx, args[0]); err != nil {
		return "", fmt.Errorf("failed to set model: %w", err)
	}

	return c.formatter.Success(fmt.Sprintf("Model changed to: `%s/%s`", c.provider, c.state.CurrentModel())), nil
}
