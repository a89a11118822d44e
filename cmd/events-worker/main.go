package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-booking-engine/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking-engine/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/internal/locker"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("events worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db, err := bootstrap.BuildSQLDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var lock locker.Locker = locker.NewLocalLocker()
	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		defer func() { _ = client.Close() }()
		lock = locker.NewRedisLocker(client, logger)
	}

	completion := appointments.NewCompletionJob(appointments.NewPostgresRepository(db), lock, cfg.CompletionCron, cfg.Location(), logger)
	completion.Start(ctx)
	defer completion.Stop()

	if cfg.OutboxEnabled {
		awsCfg, err := mainconfig.LoadAWSConfigIfNeeded(ctx, cfg)
		if err != nil {
			logger.Error("failed to load aws config", "error", err)
			os.Exit(1)
		}
		sink, closeSink, err := bootstrap.BuildSink(cfg, awsCfg, logger)
		if err != nil {
			logger.Error("failed to build events sink", "error", err)
			os.Exit(1)
		}
		defer closeSink()
		if sink == nil {
			logger.Warn("outbox enabled but EVENTS_SINK is none; events stay pending")
		} else {
			deliverer := events.NewDeliverer(events.NewOutboxStore(pool), sink, logger.WithComponent("outbox")).
				WithInterval(cfg.OutboxPollInterval)
			go deliverer.Start(ctx)
			logger.Info("outbox deliverer started", "sink", cfg.EventsSink, "interval", cfg.OutboxPollInterval)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("events worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
