package main

import (
	"context"
	"errors"
	"os"
	"time"

	"playbox/internal/amqp"
	"playbox/internal/cli"
	"playbox/internal/config"
	"playbox/internal/log"
	gsheet "playbox/internal/sheets/google"
	"playbox/internal/worker"
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cli.LoadEnvFile(logger)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting playbox-worker", log.FieldOperation, log.OpStartup)

	repo := cli.InitJournal(logger, cfg.JournalDBPath)
	defer repo.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	exporter, err := gsheet.NewExporter(initCtx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, exporter, cfg.SyncBatchSize, logger, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Entries recorded while the worker was down.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err.Error())
	}

	go func() {
		if err := amqpClient.ConsumeJournalSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err.Error())
		}
	}()

	// The periodic sweep picks up entries whose message was lost.
	go syncWorker.RunPeriodic(ctx, cfg.SyncInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
