package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financecalc/internal/amqp"
	"financecalc/internal/cli"
	"financecalc/internal/engine"
	apphttp "financecalc/internal/http"
	"financecalc/internal/log"
	"financecalc/internal/services"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Cleanup()

	// Change events are optional; without them the export worker polls.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	if cfg.SeedOnStart {
		state, err := services.NewSeeder(be.Store, logger, nil).Bootstrap(ctx, be.Seeds)
		if err != nil {
			logger.Error("Seeding failed, starting with the data at hand", log.FieldError, err)
		} else {
			logger.Info("Seed state", "seeded", state.Seeded, "version", state.Version)
		}
	}

	eng := engine.New(be.Store, logger, nil)
	if err := eng.Start(ctx); err != nil {
		logger.Error("Failed to start aggregation engine", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Finance:   services.NewFinanceService(be.Store, publisher, logger, nil),
		Summaries: eng,
		Store:     be.Store,
		Ping:      be.Ping,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting financecalc server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		summaries, err := eng.Watch(gctx)
		if err != nil {
			return err
		}
		engineLog := logger.WithComponent(log.ComponentEngine)
		for s := range summaries {
			engineLog.Debug("Summary updated",
				log.FieldBalance, s.Balance.StringFixed(2),
				log.FieldCount, len(s.IncomeEntries)+len(s.ExpenseEntries)+len(s.DebtEntries))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return eng.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Server stopped gracefully")
}
