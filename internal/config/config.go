package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DispatchInProcess = "inprocess"
	DispatchAMQP      = "amqp"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration
	TrustedProxies  []string

	// WhatsApp Cloud API
	WebhookVerifyToken  string
	WhatsAppAccessToken string
	WhatsAppTokenFile   string
	WhatsAppAPIBaseURL  string
	WhatsAppAPIVersion  string

	// Long-lived token exchange
	AppID           string
	AppSecret       string
	ShortLivedToken string

	// Upstream APIs
	UsersAPIURL     string
	ExpensesAPIURL  string
	InternalAPIKey  string
	UpstreamTimeout time.Duration

	// Dispatch
	DispatchMode        string
	MaxConcurrentEvents int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Event journal (optional)
	EventLogDBPath string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		TrustedProxies:  getEnvList("TRUSTED_PROXIES"),

		WebhookVerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAccessToken: getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppTokenFile:   getEnv("WHATSAPP_TOKEN_FILE", ""),
		WhatsAppAPIBaseURL:  strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"), "/"),
		WhatsAppAPIVersion:  getEnv("WHATSAPP_API_VERSION", "v19.0"),

		AppID:           getEnv("APP_ID", ""),
		AppSecret:       getEnv("APP_SECRET", ""),
		ShortLivedToken: getEnv("FB_SHORT_TOKEN", ""),

		UsersAPIURL:     getEnv("API_USUARIOS_URL", ""),
		ExpensesAPIURL:  getEnv("API_GASTOS_URL", ""),
		InternalAPIKey:  getEnv("INTERNAL_API_KEY", ""),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		DispatchMode:        strings.ToLower(getEnv("DISPATCH_MODE", DispatchInProcess)),
		MaxConcurrentEvents: getEnvInt("MAX_CONCURRENT_EVENTS", 16),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gastosbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "inbound_events"),

		EventLogDBPath: getEnv("EVENT_LOG_DB_PATH", ""),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Validate dispatch mode
	validModes := []string{DispatchInProcess, DispatchAMQP}
	if !slices.Contains(validModes, c.DispatchMode) {
		errors = append(errors, fmt.Sprintf("invalid dispatch mode '%s': must be one of %v", c.DispatchMode, validModes))
	}

	if c.DispatchMode == DispatchAMQP && c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required when using amqp dispatch mode")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate upstream URLs when set
	for name, raw := range map[string]string{
		"API_USUARIOS_URL":      c.UsersAPIURL,
		"API_GASTOS_URL":        c.ExpensesAPIURL,
		"WHATSAPP_API_BASE_URL": c.WhatsAppAPIBaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", name, raw))
		}
	}

	if c.MaxConcurrentEvents < 1 {
		errors = append(errors, fmt.Sprintf("invalid max concurrent events %d: must be at least 1", c.MaxConcurrentEvents))
	} else if c.MaxConcurrentEvents > 1024 {
		errors = append(errors, fmt.Sprintf("invalid max concurrent events %d: must be at most 1024", c.MaxConcurrentEvents))
	}

	if c.UpstreamTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be at least 1 second", c.UpstreamTimeout))
	} else if c.UpstreamTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be at most 1 minute", c.UpstreamTimeout))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Check the journal directory exists or can be created
	if c.EventLogDBPath != "" {
		dir := filepath.Dir(c.EventLogDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create event log directory '%s': %v", dir, err))
				}
			}
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Warnings lists settings whose absence does not stop the process but
// disables part of the bot. Calls that need them fail locally at runtime.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.WebhookVerifyToken == "" {
		warnings = append(warnings, "WHATSAPP_VERIFY_TOKEN is not set: webhook verification will always be rejected")
	}
	if c.WhatsAppAccessToken == "" && c.WhatsAppTokenFile == "" {
		warnings = append(warnings, "neither WHATSAPP_ACCESS_TOKEN nor WHATSAPP_TOKEN_FILE is set: replies cannot be sent")
	}
	if c.UsersAPIURL == "" {
		warnings = append(warnings, "API_USUARIOS_URL is not set: every sender will be treated as unregistered")
	}
	if c.ExpensesAPIURL == "" {
		warnings = append(warnings, "API_GASTOS_URL is not set: expense summaries will fail")
	}
	if c.InternalAPIKey == "" {
		warnings = append(warnings, "INTERNAL_API_KEY is not set: upstream calls are unauthenticated")
	}
	return warnings
}

// CanExchangeToken reports whether a long-lived token can be requested.
func (c *Config) CanExchangeToken() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ShortLivedToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
