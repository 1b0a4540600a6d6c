package main

import (
	"context"
	"os"

	"gastosbot/internal/amqp"
	"gastosbot/internal/cli"
	applog "gastosbot/internal/log"
	"gastosbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	journal := cli.InitJournal(logger, cfg.EventLogDBPath)
	tokens := cli.TokenSource(context.Background(), cfg, logger)
	handler := cli.NewMessageHandler(cfg, logger, tokens, journal)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	eventWorker := worker.NewEventWorker(amqpClient, handler, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := eventWorker.Stop(ctx); err != nil {
			logger.Warn("Worker stop error", applog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
		if journal != nil {
			_ = journal.Close()
		}
	})

	logger.Info("Starting gastosbot-worker", "queue", cfg.AMQPQueue)
	if err := eventWorker.Start(ctx); err != nil {
		logger.Error("Failed to start worker", applog.FieldError, err)
		os.Exit(1)
	}

	select {
	case <-eventWorker.Done():
		if ctx.Err() == nil {
			logger.Error("Consumer stopped unexpectedly", applog.FieldError, eventWorker.Err())
			amqpClient.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	cli.WaitForShutdown(ctx, done)
}
