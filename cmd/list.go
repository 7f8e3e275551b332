package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/storage"
	"github.com/spigell/jobradar/internal/utils"
	"go.uber.org/zap"
)

const titleColumnWidth = 50

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored postings, best matches first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := setup(ctx)
		defer a.Close()

		filter, err := listFilter(cmd)
		if err != nil {
			a.logger.Fatal("invalid flags", zap.Error(err))
		}

		postings, err := a.store.Query(ctx, filter)
		if err != nil {
			a.logger.Fatal("querying postings", zap.Error(err))
		}

		if asJSON, _ := cmd.Flags().GetBool("output-json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(postings); err != nil {
				a.logger.Fatal("encoding postings", zap.Error(err))
			}
			return
		}

		printPostings(postings)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Float64("min-score", 0, "only postings with a combined score at or above this value")
	listCmd.Flags().String("status", "", "only postings with this triage status")
	listCmd.Flags().String("source", "", "only postings from this source")
	listCmd.Flags().String("group", "", "only postings from this query group")
	listCmd.Flags().IntP("limit", "n", 50, "maximum number of postings")
	listCmd.Flags().Bool("output-json", false, "print postings as JSON")
}

func listFilter(cmd *cobra.Command) (storage.Filter, error) {
	var f storage.Filter
	f.MinScore, _ = cmd.Flags().GetFloat64("min-score")
	f.Source, _ = cmd.Flags().GetString("source")
	f.Group, _ = cmd.Flags().GetString("group")
	f.Limit, _ = cmd.Flags().GetInt("limit")

	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		status, err := posting.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	return f, nil
}

func printPostings(postings []*posting.Posting) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCORE\tSTATUS\tTITLE\tCOMPANY\tLOCATION\tSOURCE")
	for _, p := range postings {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			formatScore(p),
			p.UserStatus,
			utils.TruncateWords(p.Title, titleColumnWidth),
			p.Company,
			p.DisplayLocation(),
			p.Source,
		)
	}
	w.Flush()
}

func formatScore(p *posting.Posting) string {
	if !p.Scored() {
		return "-"
	}
	return strconv.FormatFloat(p.Score(), 'f', 2, 64)
}
