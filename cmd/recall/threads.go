package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandevgo/recall/internal/service/ui"
	"github.com/spf13/cobra"
)

var historyLimit int

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		threads, err := store.Threads.ListThreads(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("THREADS"))
		if len(threads) == 0 {
			fmt.Fprintln(out, ui.DescStyle.Render("  no threads yet"))
			return nil
		}
		for _, t := range threads {
			fmt.Fprintf(out, "  %s %s %s\n",
				ui.UsageStyle.Render(fmt.Sprintf("%4d", t.ID)),
				t.Name,
				ui.DescStyle.Render(t.CreatedAt.Local().Format("2006-01-02 15:04")),
			)
		}
		return nil
	},
}

var threadsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		thread, err := store.Threads.CreateThread(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created thread %d (%s)\n", thread.ID, thread.Name)
		return nil
	},
}

var threadsHistoryCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Print the most recent messages of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid thread id %q", args[0])
		}
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be positive, got %d", historyLimit)
		}

		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.DB.Close()

		if _, err := store.Threads.GetThread(ctx, id); err != nil {
			return err
		}
		msgs, err := store.Messages.History(ctx, id, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range msgs {
			fmt.Fprintf(out, "%s %s\n%s\n\n",
				ui.FlagStyle.Render(m.Role),
				ui.DescStyle.Render(m.CreatedAt.Local().Format("2006-01-02 15:04:05")),
				m.Content,
			)
		}
		return nil
	},
}

func init() {
	threadsHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of messages")
	threadsCmd.AddCommand(threadsListCmd, threadsCreateCmd, threadsHistoryCmd)
	rootCmd.AddCommand(threadsCmd)
}
