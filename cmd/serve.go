package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only HTTP API, health and metrics endpoints",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()

		a := setup(ctx)
		defer a.Close()

		srv := startServer(a)
		<-ctx.Done()
		stopServer(a, srv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
