package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/transport/mcpserver"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/srv"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the memory tools over MCP stdio",
	Long:  `Runs an MCP server on stdin/stdout. Logs go to stderr so they never corrupt the protocol stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, debug || config.IsDebug(), os.Stderr)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}

		server := mcpserver.NewServer(mcpserver.Deps{
			Threads:     app.Threads,
			Messages:    app.Messages,
			Memory:      app.Memory,
			Chat:        app.Chat,
			Embedder:    app.Embedder,
			Retrieval:   app.Retrieval,
			PreviewSize: app.RetrievalCfg.PreviewSize,
		}, os.Stdin, os.Stdout)

		services := append([]srv.Service{}, app.Cleanups()...)
		return srv.Run(ctx, append(services, server))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
