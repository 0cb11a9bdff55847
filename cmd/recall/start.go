package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/transport/api"
	"github.com/sandevgo/recall/internal/transport/cli"
	"github.com/sandevgo/recall/internal/transport/telegram"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Recall services",
	Long:  `Starts every enabled transport (CLI, Telegram, HTTP API) on top of one shared memory store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting recall")

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}

		// Cleanups go first so they shut down last.
		services := append([]srv.Service{}, app.Cleanups()...)

		if app.Cfg.EnableHTTP {
			services = append(services, api.NewServer(app.Cfg, api.NewHandler(
				app.Threads,
				app.Messages,
				app.Chat,
				app.Retrieval,
				app.Keys,
				app.LLM.GetModel,
			)))
		}

		if app.Cfg.IsTelegramSelected() {
			bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), app.Handler)
			if err != nil {
				srv.ShutdownServices(ctx, services)
				return err
			}
			services = append(services, bot)
		}

		if app.Cfg.EnableCLI {
			repl, err := cli.NewReadLine(app.Handler, app.Cfg)
			if err != nil {
				srv.ShutdownServices(ctx, services)
				return err
			}
			services = append(services, repl)
		}

		if len(services) == len(app.Cleanups()) {
			logger.Warn().Msg("no transport enabled, set RECALL_ENABLE_CLI, RECALL_ENABLE_TELEGRAM or RECALL_ENABLE_HTTP")
			srv.ShutdownServices(ctx, services)
			return nil
		}

		err = srv.Run(ctx, services)
		logger.Info().Msg("recall has been shut down gracefully")
		return err
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
