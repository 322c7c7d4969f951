package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"playbox/internal/amqp"
	"playbox/internal/analytics"
	"playbox/internal/cache"
	"playbox/internal/cli"
	"playbox/internal/config"
	apphttp "playbox/internal/http"
	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/ports"
	"playbox/internal/services"
	"playbox/internal/session"
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cli.LoadEnvFile(logger)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)
	logger = cli.SetupLogger(cfg.LogLevel)

	collector := metrics.New()
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	res := cli.InitBackend(startCtx, logger, cfg, collector)
	cancelStart()

	operators, err := session.ParseOperators(cfg.Operators)
	if err != nil {
		logger.Error("Invalid OPERATORS", log.FieldError, err.Error())
		os.Exit(1)
	}
	sessions, err := session.NewManager(session.Config{
		Secret:    cfg.SessionSecret,
		TTL:       cfg.SessionTTL,
		Operators: operators,
		Logger:    logger,
		Metrics:   collector,
	})
	if err != nil {
		logger.Error("Failed to initialize sessions", log.FieldError, err.Error())
		os.Exit(1)
	}

	// Journal and AMQP are optional.
	var journal *services.JournalService
	if cfg.JournalEnabled() {
		repo := cli.InitJournal(logger, cfg.JournalDBPath)
		var publisher services.SyncPublisher
		if cfg.AMQPURL != "" {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				logger.Warn("AMQP unavailable, journal entries wait for the worker sweep", log.FieldError, err.Error())
			} else {
				publisher = client
				logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			}
		}
		journal = services.NewJournalService(repo, publisher, logger, collector)
		logger.Info("Operator journal enabled", "path", cfg.JournalDBPath)
	}

	pos := services.NewPOSService(res.Backend, services.POSConfig{
		MinAddAmount: cfg.MinAddAmount,
		Journal:      journal,
		Logger:       logger,
		Metrics:      collector,
	})
	dashboard := services.NewDashboardService(res.Backend, services.DashboardConfig{
		Thresholds: analytics.Thresholds{Low: cfg.LowBalanceThreshold, High: cfg.HighBalanceThreshold},
		Logger:     logger,
		Metrics:    collector,
	})

	var pinger ports.Pinger
	if p, ok := res.Backend.(ports.Pinger); ok {
		pinger = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:  sessions,
		POS:       pos,
		Dashboard: dashboard,
		Journal:   journal,
		Backend:   pinger,
		Metrics:   collector,
		Logger:    logger,
	})

	caches := cache.NewManager(logger)
	caches.Register("sessions", sessions)
	caches.StartCleanup(5 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		caches.Stop()
		if journal != nil {
			if err := journal.Close(); err != nil {
				logger.Error("Failed to close journal", log.FieldError, err.Error())
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting playbox server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"journal", journal != nil,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
