// Package main provides the entry point for the editorial maintenance worker.
// It runs the scheduled jobs that keep review round statuses and the overdue
// gauge current.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/editorial-workflow-service/internal/bootstrap"
	"github.com/helixir/editorial-workflow-service/internal/jobs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.LoadConfig("worker")
	if err != nil {
		return err
	}
	logger.Info().Msg("editorial-workflow worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	scheduler := jobs.NewScheduler(logger, app.Metrics)
	for _, job := range []jobs.Job{
		jobs.NewRoundRefresh(app.Review, cfg.Jobs, logger),
		jobs.NewOverdueGauge(app.Review, cfg.Jobs.OverdueGaugeInterval, app.Metrics),
	} {
		// Several workers may run; each job holds an advisory lock while it runs.
		if err := scheduler.Register(jobs.Exclusive(job, app.DB, logger)); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name(), err)
		}
		logger.Info().Str("job", job.Name()).Str("schedule", job.Schedule()).Msg("job registered")
	}

	var metricsServer *http.Server
	errCh := make(chan error, 1)
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	scheduler.Start(ctx)
	logger.Info().Msg("editorial-workflow worker is ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("worker error")
	}

	logger.Info().Msg("stopping scheduler, waiting for running jobs")
	scheduler.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("editorial-workflow worker shutdown complete")
	return runErr
}
