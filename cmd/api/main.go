// Package main is the entry point for the raincheck API server.
//
// It loads the configuration, builds the provider clients behind the
// resilience layer, assembles the prediction pipeline, mounts the HTTP
// chassis, and listens until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/api/handlers"
	"raincheck/internal/config"
	"raincheck/internal/core"
	"raincheck/internal/external"
	"raincheck/internal/predict"
	"raincheck/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("raincheck API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	clock := types.RealClock{}
	retry := external.DefaultRetryPolicy()
	serviceUA := cfg.UserAgent()

	modelBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Parser.Timeout},
		"model", retry, serviceUA,
	)
	geocoderBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Geocoder.Timeout},
		"geocoder", retry, cfg.Geocoder.UserAgent,
	)
	forecastBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"forecast", retry, serviceUA,
	)
	archiveBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"archive", retry, serviceUA,
	)
	powerBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"power", retry, serviceUA,
	)

	model := external.NewModelClient(modelBase, cfg.Parser.BaseURL, cfg.Parser.APIKey, cfg.Parser.Model, clock, logger)
	geocoder := external.NewNominatimClient(geocoderBase, cfg.Geocoder.BaseURL, logger)
	forecast := external.NewForecastClient(forecastBase, cfg.Weather.ForecastBaseURL, logger)
	archive := external.NewArchiveClient(archiveBase, cfg.Weather.ArchiveBaseURL, cfg.Weather.LookbackYears, logger)
	power := external.NewPowerClient(powerBase, cfg.Weather.PowerBaseURL, cfg.Weather.LookbackYears, logger)

	pipeline := predict.NewService(
		model,
		geocoder,
		forecast,
		[]predict.HistoricalSource{archive, power},
		predict.Options{
			Strict:      cfg.Parser.Strict,
			HorizonDays: cfg.Weather.HorizonDays,
			Weights:     predict.DefaultWeights(),
		},
		clock,
		logger,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = core.NewPrometheusMetrics(cfg.Service)

	predictHandler := handlers.NewPredictHandler(pipeline, model, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		predictHandler.RegisterRoutes(r)
	})

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newLogger builds the application-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
