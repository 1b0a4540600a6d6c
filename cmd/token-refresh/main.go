// Command token-refresh exchanges FB_SHORT_TOKEN for a long-lived Graph API
// token and stores it in WHATSAPP_TOKEN_FILE.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gastosbot/internal/cli"
	applog "gastosbot/internal/log"
	"gastosbot/internal/token"
)

func main() {
	force := flag.Bool("force", false, "exchange even when the stored token is still valid")
	check := flag.Bool("check", false, "only report the stored token's remaining days")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentToken)

	if cfg.WhatsAppTokenFile == "" {
		logger.Error("WHATSAPP_TOKEN_FILE is required")
		os.Exit(1)
	}
	store := token.NewStore(cfg.WhatsAppTokenFile)

	if *check {
		os.Exit(report(store, logger))
	}

	if !cfg.CanExchangeToken() {
		logger.Error("APP_ID, APP_SECRET and FB_SHORT_TOKEN are required to exchange a token")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+5*time.Second)
	defer cancel()

	exchanger := token.NewExchanger(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, cfg.AppID, cfg.AppSecret, cfg.UpstreamTimeout)
	refreshed, err := token.Refresh(ctx, store, exchanger, cfg.ShortLivedToken, *force, time.Now)
	if err != nil {
		logger.Error("Token refresh failed", applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
		os.Exit(1)
	}
	if refreshed {
		logger.Info("Long-lived token saved", applog.FieldOperation, applog.OpRefresh, "path", store.Path())
	} else {
		logger.Info("Stored token still valid, nothing to do", applog.FieldOperation, applog.OpRefresh)
	}
	report(store, logger)
}

func report(store *token.Store, logger *applog.Logger) int {
	tok, err := store.Load()
	if err != nil {
		logger.Error("Cannot read stored token", applog.FieldError, err, "path", store.Path())
		return 1
	}
	now := time.Now()
	days := tok.RemainingDays(now)
	fmt.Printf("token created %s, %d days remaining\n", tok.CreatedAt.Format(time.RFC3339), days)
	if tok.NeedsRefresh(now) {
		logger.Warn("Token is close to expiry", "remaining_days", days)
		return 2
	}
	return 0
}
