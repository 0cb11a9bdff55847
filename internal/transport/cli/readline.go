package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/service/ui"
	"github.com/sandevgo/recall/internal/transport"
	"github.com/sandevgo/recall/pkg/conv"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	defaultSessionID = "cli-local"
	defaultUserID    = "local"
)

type ReadLine struct {
	cfg      *config.AppConfig
	handler  *transport.Handler
	rl       *readline.Instance
	renderer *glamour.TermRenderer // nil falls back to plain text
}

func NewReadLine(handler *transport.Handler, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     cfg.GetInputHistoryPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	return &ReadLine{
		cfg:      cfg,
		handler:  handler,
		rl:       rl,
		renderer: renderer,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("chat started. Type 'exit' to quit, /help for commands.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if transport.IsExit(line) {
			fmt.Fprintln(r.rl.Stdout(), "Conversation memory saved. Bye.")
			return nil
		}

		r.respond(ctx, r.rl.Stdout(), line)
	}
}

func (r *ReadLine) respond(ctx context.Context, out io.Writer, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	reply, err := r.handler.Handle(ctx, defaultSessionID, defaultUserID, line)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("turn failed")
		fmt.Fprintln(out, ui.ErrorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return
	}

	if strings.HasPrefix(strings.TrimSpace(line), "/") {
		fmt.Fprintln(out, conv.MarkdownToPlainText(reply))
		return
	}
	fmt.Fprintf(out, "%s %s\n", ui.AssistantStyle.Render("Recall:"), r.render(reply))
}

// render formats an assistant reply for the terminal.
func (r *ReadLine) render(md string) string {
	if r.renderer != nil {
		if out, err := r.renderer.Render(md); err == nil {
			return strings.TrimSpace(out)
		}
	}
	return conv.MarkdownToPlainText(md)
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
