// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/gastosbot, cmd/gastosbot-worker, and cmd/token-refresh.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gastosbot/internal/config"
	"gastosbot/internal/directory"
	"gastosbot/internal/ledger"
	applog "gastosbot/internal/log"
	"gastosbot/internal/services"
	"gastosbot/internal/storage"
	"gastosbot/internal/token"
	"gastosbot/internal/whatsapp"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(cfg *config.Config) *applog.Logger {
	lc := applog.DefaultConfig()
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration incomplete", "detail", w)
	}
	return cfg, logger
}

// InitJournal opens the optional SQLite event journal. It returns nil when
// no path is configured and exits the process when the database cannot be opened.
func InitJournal(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	if dbPath == "" {
		return nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize event journal", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Event journal enabled", "path", dbPath)
	return repo
}

// TokenSource picks where outbound calls get their bearer token: the
// token file when configured, otherwise the static access token.
// With a token file and app credentials, a token near expiry is exchanged
// before the source is returned.
func TokenSource(ctx context.Context, cfg *config.Config, logger *applog.Logger) whatsapp.TokenSource {
	if cfg.WhatsAppTokenFile == "" {
		return whatsapp.StaticToken(cfg.WhatsAppAccessToken)
	}

	store := token.NewStore(cfg.WhatsAppTokenFile)
	if cfg.CanExchangeToken() {
		exchanger := token.NewExchanger(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, cfg.AppID, cfg.AppSecret, cfg.UpstreamTimeout)
		refreshed, err := token.Refresh(ctx, store, exchanger, cfg.ShortLivedToken, false, time.Now)
		if err != nil {
			logger.Warn("Access token refresh failed", applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
		} else if refreshed {
			logger.Info("Access token refreshed", applog.FieldOperation, applog.OpRefresh)
		}
	}
	if cfg.WhatsAppAccessToken != "" {
		return whatsapp.FallbackToken(store, whatsapp.StaticToken(cfg.WhatsAppAccessToken))
	}
	return store
}

// NewMessageHandler wires the router to its upstream clients. journal may be nil.
func NewMessageHandler(cfg *config.Config, logger *applog.Logger, tokens whatsapp.TokenSource, journal *storage.SQLiteRepository) *services.MessageHandler {
	dir := directory.NewClient(cfg.UsersAPIURL, cfg.InternalAPIKey, cfg.UpstreamTimeout, logger)
	agg := ledger.NewClient(cfg.ExpensesAPIURL, cfg.InternalAPIKey, cfg.UpstreamTimeout, logger)
	sender := whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, tokens, cfg.UpstreamTimeout, logger)

	handler := services.NewMessageHandler(dir, agg, sender, logger)
	if journal != nil {
		handler = handler.WithRecorder(journal)
	}
	return handler
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
