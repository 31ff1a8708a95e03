package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/cyclewatch/internal/api"
	"github.com/newthinker/cyclewatch/internal/app"
	"github.com/newthinker/cyclewatch/internal/metrics"
	"github.com/newthinker/cyclewatch/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cyclewatch server",
	Long: `Serves the HTTP API and, when schedule.enabled is set, evaluates the
scheduled assets on the configured cron expression.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	var reg *metrics.Registry
	metricsPath := ""
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		metricsPath = cfg.Metrics.Path
	}

	application, err := app.Build(cfg, reg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}

	log.Info("starting cyclewatch server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("market", cfg.Market.Provider),
		zap.Bool("schedule", cfg.Schedule.Enabled),
	)

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: metricsPath,
		Version:     Version,
	}, application, reg, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.Enabled {
		var recorder scheduler.Recorder
		if reg != nil {
			recorder = reg
		}
		sched, err := scheduler.New(scheduler.Config{Spec: cfg.Schedule.Cron}, application, recorder, log.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
		log.Info("scheduler started", zap.Time("next_run", sched.Next()))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down cyclewatch server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
