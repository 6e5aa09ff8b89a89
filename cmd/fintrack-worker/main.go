package main

import (
	"context"
	"fmt"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	if err != nil {
		return err
	}
	logger.Info("Starting fintrack-worker", "backend", cfg.DataBackend)

	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, cli.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()
	app.Caches.StartCleanup(cfg.RatesCacheTTL)
	defer app.Caches.Stop()

	wcfg := worker.Config{
		Rates:    app.Rates,
		Schedule: cfg.RatesRefreshCron,
		Logger:   logger,
	}
	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer consumer.Close()
		wcfg.Events = consumer
		wcfg.Handler = services.NewEventProcessor(app.Reports)
	} else {
		logger.Info("AMQP_URL not set, ledger events disabled")
	}

	w, err := worker.New(wcfg)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
