package main

import (
	"context"
	"os"

	"gastosbot/internal/amqp"
	"gastosbot/internal/cli"
	"gastosbot/internal/config"
	"gastosbot/internal/core"
	"gastosbot/internal/dispatch"
	apphttp "gastosbot/internal/http"
	applog "gastosbot/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	journal := cli.InitJournal(logger, cfg.EventLogDBPath)
	tokens := cli.TokenSource(context.Background(), cfg, logger)
	handler := cli.NewMessageHandler(cfg, logger, tokens, journal)

	checks := map[string]apphttp.ReadyCheck{}
	if journal != nil {
		checks["journal"] = journal.Ping
	}

	var (
		dispatcher dispatch.Dispatcher
		inProcess  *dispatch.InProcess
		amqpClient *amqp.Client
	)
	switch cfg.DispatchMode {
	case config.DispatchAMQP:
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		dispatcher = amqpClient
		checks["amqp"] = amqpClient.Ping
	default:
		inProcess = dispatch.NewInProcess(func(ctx context.Context, ev core.InboundEvent) {
			handler.HandleEvent(ctx, ev)
		}, cfg.MaxConcurrentEvents, logger)
		dispatcher = inProcess
	}

	srv := apphttp.NewServer(apphttp.ServerConfig{
		Addr:        ":" + cfg.Port,
		VerifyToken: cfg.WebhookVerifyToken,
		Dispatcher:  dispatcher,
		Logger:      logger,
		ReadyChecks: checks,

		TrustedProxies: cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if inProcess != nil {
			_ = inProcess.Wait(ctx)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if journal != nil {
			if err := journal.Close(); err != nil {
				logger.Warn("Event journal close error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting gastosbot",
		"port", cfg.Port,
		"dispatch_mode", cfg.DispatchMode,
		"webhook", "/webhook")
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
