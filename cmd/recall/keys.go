package main

import (
	"fmt"

	"github.com/sandevgo/recall/internal/service/auth"
	"github.com/sandevgo/recall/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	keyUser      string
	keyName      string
	keyRateLimit int
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage HTTP API keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		key, err := store.Keys.Generate(ctx, keyUser, keyName, keyRateLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		fmt.Fprintln(cmd.ErrOrStderr(), ui.DescStyle.Render("Save it securely, it is not shown again."))
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keys of a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		keys, err := store.Keys.List(ctx, keyUser)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, k := range keys {
			state := ui.UsageStyle.Render("active")
			if !k.Active {
				state = ui.ErrorStyle.Render("revoked")
			}
			fmt.Fprintf(out, "  %s  %-16s %s  %s\n", k.Key, k.Name, state,
				ui.DescStyle.Render(k.CreatedAt.Local().Format("2006-01-02 15:04")))
		}
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key>",
	Short: "Deactivate a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		if err := store.Keys.Revoke(ctx, args[0], ""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "revoked")
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key owned by --user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		if err := store.Keys.Delete(ctx, args[0], keyUser); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted")
		return nil
	},
}

func init() {
	keysGenerateCmd.Flags().StringVarP(&keyName, "name", "n", "default", "key label")
	keysGenerateCmd.Flags().IntVar(&keyRateLimit, "rate-limit", auth.DefaultRateLimit, "requests per minute recorded with the key")
	for _, c := range []*cobra.Command{keysGenerateCmd, keysListCmd, keysDeleteCmd} {
		c.Flags().StringVarP(&keyUser, "user", "u", "", "owner user id")
		_ = c.MarkFlagRequired("user")
	}

	keysCmd.AddCommand(keysGenerateCmd, keysListCmd, keysRevokeCmd, keysDeleteCmd)
	rootCmd.AddCommand(keysCmd)
}
