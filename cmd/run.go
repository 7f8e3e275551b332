package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spigell/jobradar/internal/api"
	"github.com/spigell/jobradar/internal/scheduler"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest, score and notify",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("daemon", false, "keep running and repeat the pipeline on the configured cron schedule")
	runCmd.Flags().Bool("serve", false, "with --daemon, also serve the HTTP API and metrics")
}

func run(cmd *cobra.Command) {
	ctx, stop := signalContext()
	defer stop()

	a := setup(ctx)
	defer a.Close()

	a.logger.Info("starting the jobradar", zap.String("version", resolvedVersion()))

	runner, err := a.newRunner(ctx, allStages)
	if err != nil {
		a.logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	daemon, _ := cmd.Flags().GetBool("daemon")
	if !daemon {
		if _, err := runner.Run(ctx); err != nil {
			a.logger.Fatal("pipeline finished with errors", zap.Error(err))
		}
		return
	}

	sched, err := scheduler.New(scheduler.Options{
		Spec:       a.config.Schedule.Cron,
		Timezone:   a.config.Schedule.Timezone,
		RunOnStart: a.config.Schedule.RunOnStart,
	}, func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}, a.logger)
	if err != nil {
		a.logger.Fatal("creating the scheduler", zap.Error(err))
	}

	if err := sched.Start(ctx); err != nil {
		a.logger.Fatal("starting the scheduler", zap.Error(err))
	}
	a.logger.Info("scheduler started",
		zap.String("cron", a.config.Schedule.Cron),
		zap.Time("next_run", sched.Next()),
	)

	var srv *http.Server
	if serve, _ := cmd.Flags().GetBool("serve"); serve {
		srv = startServer(a)
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	if srv != nil {
		stopServer(a, srv)
	}
	sched.Stop()
}

func startServer(a *application) *http.Server {
	router := api.NewRouter(api.NewHandler(a.store), a.metrics, a.logger)
	srv := api.NewServer(a.config.Server.Addr, router)

	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return srv
}

func stopServer(a *application, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("http server shutdown", zap.Error(err))
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
