package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/jobradar/internal/config"
	"go.uber.org/zap"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config when missing, create the database and apply migrations",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		path := cfgFile
		if path == "" {
			path = app + ".yaml"
		}
		created, err := config.WriteTemplate(path)
		if err != nil {
			log.Fatalf("writing config template: %v", err)
		}
		if created {
			// Pick up the template we just wrote.
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				log.Fatal(err)
			}
		}

		a := setup(ctx)
		defer a.Close()

		schema, err := a.store.SchemaVersion(ctx)
		if err != nil {
			a.logger.Fatal("reading schema version", zap.Error(err))
		}
		if created {
			a.logger.Info("config template created", zap.String("path", path))
		}
		a.logger.Info("database is ready",
			zap.String("driver", string(a.store.Dialect())),
			zap.Int("schema_version", schema),
		)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch postings from every configured source and store the new ones",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()
		a := setup(ctx)
		defer a.Close()

		source, _ := cmd.Flags().GetString("source")
		runner, err := a.newRunner(ctx, stages{ingest: true, source: source})
		if err != nil {
			a.logger.Fatal("preparing ingest", zap.Error(err))
		}

		result, err := runner.Ingest(ctx)
		for name, src := range result {
			a.logger.Info("source result",
				zap.String("source", name),
				zap.Int("found", src.Found),
				zap.Int("new", src.New),
				zap.Int("updated", src.Updated),
				zap.Bool("failed", src.Failed),
			)
		}
		if err != nil {
			a.logger.Fatal("ingest finished with errors", zap.Error(err))
		}
		a.logger.Info("ingest complete", zap.Int("new", result.New()))
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every posting that has no combined score yet",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()
		a := setup(ctx)
		defer a.Close()

		runner, err := a.newRunner(ctx, stages{score: true})
		if err != nil {
			a.logger.Fatal("preparing scoring", zap.Error(err))
		}

		result, err := runner.Score(ctx)
		if err != nil {
			a.logger.Fatal("scoring failed", zap.Error(err))
		}
		a.logger.Info("scoring complete",
			zap.Int("attempted", result.Attempted),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send pending notifications on every enabled channel",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()
		a := setup(ctx)
		defer a.Close()

		runner, err := a.newRunner(ctx, stages{notify: true})
		if err != nil {
			a.logger.Fatal("preparing notifications", zap.Error(err))
		}

		summary, err := runner.Notify(ctx)
		for channel, s := range summary {
			a.logger.Info("channel result",
				zap.String("channel", channel),
				zap.Int("pending", s.Pending),
				zap.Int("sent", s.Sent),
				zap.Int("failed", s.Failed),
				zap.Bool("skipped", s.Skipped),
			)
		}
		if err != nil {
			a.logger.Fatal("notifications finished with errors", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd, ingestCmd, scoreCmd, notifyCmd)

	ingestCmd.Flags().StringP("source", "s", "", "ingest only the source with this name")
}
