// Package main provides the entry point for the editorial workflow HTTP API.
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
	httpserver "github.com/helixir/editorial-workflow-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.LoadConfig("server")
	if err != nil {
		return err
	}
	logger.Info().Msg("editorial-workflow-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	authMiddleware := httpserver.HeaderAuth
	if cfg.Auth.Enabled {
		authMiddleware = httpserver.BearerAuth(cfg.Auth)
	} else {
		logger.Warn().Str("header", httpserver.UserIDHeader).Msg("bearer auth disabled, trusting user id header")
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadSize:   cfg.Server.MaxUploadSize,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Intake:    app.Intake,
		Versions:  app.Versions,
		Review:    app.Review,
		Files:     app.Files,
		Genres:    app.Genres,
		Lister:    app.Runner,
		Dashboard: app.Dashboard,
		Directory: app.Directory,
		Locales:   app.Locales,
		Health:    app.DB,
	}, logger, authMiddleware)

	// Prometheus metrics are served on a separate port.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("editorial-workflow-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down editorial-workflow-service")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("editorial-workflow-service shutdown complete")
	return nil
}
