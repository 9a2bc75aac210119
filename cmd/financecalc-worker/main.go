package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financecalc/internal/amqp"
	"financecalc/internal/cli"
	"financecalc/internal/config"
	"financecalc/internal/log"
	"financecalc/internal/sheets"
	gsheet "financecalc/internal/sheets/google"
	sheetsmem "financecalc/internal/sheets/memory"
	"financecalc/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting financecalc-worker")

	// The worker reads the database the server writes; a memory store
	// would only ever hold this process's own records.
	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The export worker needs DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer be.Cleanup()

	var writer sheets.ReportWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "sheet", cfg.GoogleReportSheetName)
	} else {
		writer = sheetsmem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, report kept in memory")
	}

	exporter := worker.NewExportWorker(be.Store, writer, cfg.ExportInterval, logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeChanges(gctx, exporter.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("No AMQP_URL provided, exporting on every tick")
		exporter.EnablePolling()
	}

	g.Go(func() error {
		return exporter.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Worker stopped")
}
