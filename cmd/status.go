package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

var setStatusCmd = &cobra.Command{
	Use:   "set-status <posting-id> <new|reviewed|applied|rejected|saved>",
	Short: "Change the triage status of a posting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := setup(ctx)
		defer a.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			a.logger.Fatal("invalid posting id", zap.String("id", args[0]), zap.Error(err))
		}
		status, err := posting.ParseStatus(args[1])
		if err != nil {
			a.logger.Fatal("invalid status", zap.Error(err), zap.Any("allowed", posting.Statuses()))
		}

		var notes *string
		if cmd.Flags().Changed("notes") {
			n, _ := cmd.Flags().GetString("notes")
			notes = &n
		}

		if err := a.store.SetUserStatus(ctx, id, status, notes); err != nil {
			a.logger.Fatal("updating status", zap.Int64("posting_id", id), zap.Error(err))
		}
		a.logger.Info("status updated", zap.Int64("posting_id", id), zap.String("status", string(status)))
	},
}

func init() {
	rootCmd.AddCommand(setStatusCmd)

	setStatusCmd.Flags().String("notes", "", "free-form notes stored with the posting")
}
