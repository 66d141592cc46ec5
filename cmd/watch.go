package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/api"
	"github.com/JakeFAU/gp-agenda-watcher/internal/app"
	"github.com/JakeFAU/gp-agenda-watcher/internal/schedule"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run checks on a cron schedule and serve health, metrics and run endpoints",
		Long: `Keeps the watcher running in-process. Checks fire on schedule.cron in
schedule.timezone and can be triggered with POST /v1/runs. Runs never overlap.`,
		Args: cobra.NoArgs,
		RunE: withApp(runWatchCommand),
	}
}

func runWatchCommand(cmd *cobra.Command, appInstance *app.App) error {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	sched, err := schedule.New(appInstance.Watcher(), schedule.Config{
		Cron:     cfg.Schedule.Cron,
		Timezone: cfg.Schedule.Timezone,
	}, logger.Named("schedule"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(sched, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if cfg.Schedule.RunOnStart {
		go func() {
			_, err := sched.RunNow(ctx)
			if err != nil && !errors.Is(err, schedule.ErrBusy) && !errors.Is(err, schedule.ErrDrained) {
				logger.Error("startup run failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown initiated")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Drain()
	logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
