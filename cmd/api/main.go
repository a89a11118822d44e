package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking-engine/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking-engine/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-booking-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup, err := setupDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry, metricsHandler := setupMetrics()
	deps.Registry = registry

	app, err := bootstrap.Build(ctx, cfg, deps)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}
	if n, err := bootstrap.SeedDoctorsFromFile(ctx, app.Doctors, cfg.DoctorSeedFile); err != nil {
		logger.Error("failed to seed doctors", "error", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Info("seeded doctors", "count", n)
	}
	app.Completion.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Router(metricsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("event handlers did not drain", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupDeps opens whichever backing services are configured; anything left
// unset runs in memory.
func setupDeps(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bootstrap.Deps, func(), error) {
	deps := bootstrap.Deps{Logger: logger}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return deps, cleanup, err
	}
	if pool != nil {
		deps.Pool = pool
		closers = append(closers, pool.Close)
	}
	db, err := bootstrap.BuildSQLDB(ctx, cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return deps, func() {}, err
	}
	if db != nil {
		deps.SQL = db
		closers = append(closers, func() { _ = db.Close() })
	}
	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		deps.Redis = client
		closers = append(closers, func() { _ = client.Close() })
	}

	awsCfg, err := mainconfig.LoadAWSConfigIfNeeded(ctx, cfg)
	if err != nil {
		cleanup()
		return deps, func() {}, fmt.Errorf("load aws config: %w", err)
	}
	deps.AWS = awsCfg

	// With the outbox on, the worker ships events; otherwise the API does.
	if !cfg.OutboxEnabled || deps.Pool == nil {
		sink, closeSink, err := bootstrap.BuildSink(cfg, deps.AWS, logger)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.Sink = sink
		closers = append(closers, closeSink)
	}
	return deps, cleanup, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

