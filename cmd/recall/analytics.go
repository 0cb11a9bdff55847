package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/internal/service/ui"
	"github.com/spf13/cobra"
)

var analyticsJSON bool

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show retrieval statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		cfg := config.NewAppConfig(ctx)
		stats, _, err := analytics.NewLogger(cfg.GetRetrievalLogPath()).Stats(ctx)
		if err != nil {
			return err
		}

		if analyticsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func printStats(out io.Writer, s core.RetrievalStats) {
	row := func(label, value string) {
		fmt.Fprintf(out, "  %-24s %s\n", ui.DescStyle.Render(label), value)
	}

	fmt.Fprintln(out, ui.TitleStyle.Render("RETRIEVALS"))
	row("total", fmt.Sprint(s.TotalRetrievals))
	row("avg retrieved messages", fmt.Sprintf("%.2f", s.AvgRetrievedMessages))
	row("avg token count", fmt.Sprintf("%.1f", s.AvgTokenCount))
	row("avg response length", fmt.Sprintf("%.1f", s.AvgResponseLength))
	row("total tokens", fmt.Sprint(s.TotalTokensUsed))
	row("threads accessed", fmt.Sprint(s.ThreadsAccessed))
	if s.Malformed > 0 {
		row("malformed entries", fmt.Sprint(s.Malformed))
	}

	if len(s.RetrievalMethods) == 0 {
		return
	}
	methods := make([]string, 0, len(s.RetrievalMethods))
	for m := range s.RetrievalMethods {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.TitleStyle.Render("METHODS"))
	for _, m := range methods {
		row(m, fmt.Sprint(s.RetrievalMethods[m]))
	}
}

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsJSON, "json", false, "print raw JSON")
	rootCmd.AddCommand(analyticsCmd)
}
