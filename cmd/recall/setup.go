package main

import (
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/service/installer"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:          "setup",
	Short:        "Interactively write the Recall configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		runtimePath := config.GetRuntimePath()
		if _, err := installer.RunWizard(runtimePath); err != nil {
			return err
		}

		logger := log.FromCtx(ctx)
		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Setup complete! You can now run 'recall start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
