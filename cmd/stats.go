package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show posting counts and the latest scrape runs",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := setup(ctx)
		defer a.Close()

		stats, err := a.store.Stats(ctx)
		if err != nil {
			a.logger.Fatal("reading stats", zap.Error(err))
		}

		limit, _ := cmd.Flags().GetInt("runs")
		runs, err := a.store.RecentScrapeRuns(ctx, limit)
		if err != nil {
			a.logger.Fatal("reading scrape runs", zap.Error(err))
		}

		// do not bother error since both values are plain data
		pretty, _ := json.MarshalIndent(map[string]any{
			"postings":    stats,
			"scrape_runs": runs,
		}, "", "  ")
		fmt.Println(string(pretty))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Int("runs", 10, "number of recent scrape runs to show")
}
