// Package config loads the autopilot's tunables from the environment,
// matching the table in SPEC_FULL.md §6. Defaults cover every option;
// only the driver endpoint list is required.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the run loop, driver client, and settlement
// waiter read at startup.
type Config struct {
	// Driver fleet
	DriverURLs []string

	// Timeouts and limits (spec.md §6)
	SolveBudget          time.Duration
	HTTPTotalTimeout     time.Duration
	ResponseSizeLimit    int64
	TickInterval         time.Duration
	MaxWaitTime          time.Duration
	MaxReorgDepth        uint64
	NetworkBlockInterval time.Duration

	// Collaborator endpoints
	DatabaseURL        string
	SettlementIndexDSN string
	EthRPCURL          string
	OrdersFeedWSURL    string

	// Optional ops notifier
	TelegramBotToken string
	TelegramChatID   int64

	// Optional CMC API key; loaded here, but no collaborator reads it (the
	// price oracle adapter has no fallback source)
	CMCAPIKey string

	Debug bool
}

// Load reads the environment (and whatever .env the caller already loaded
// via godotenv) into a Config, applying the spec's defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DriverURLs: splitCSV(os.Getenv("DRIVER_URLS")),

		SolveBudget:          getEnvDuration("SOLVE_BUDGET", 15*time.Second),
		HTTPTotalTimeout:     getEnvDuration("HTTP_TOTAL_TIMEOUT", 60*time.Second),
		ResponseSizeLimit:    getEnvInt64("RESPONSE_SIZE_LIMIT", 10_000_000),
		TickInterval:         getEnvDuration("TICK_INTERVAL", 1*time.Second),
		MaxWaitTime:          getEnvDuration("MAX_WAIT_TIME", 60*time.Second),
		MaxReorgDepth:        getEnvUint64("MAX_REORG_DEPTH", 64),
		NetworkBlockInterval: getEnvDuration("NETWORK_BLOCK_INTERVAL", 12*time.Second),

		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SettlementIndexDSN: getEnv("SETTLEMENT_INDEX_DSN", os.Getenv("DATABASE_URL")),
		EthRPCURL:          os.Getenv("ETH_RPC_URL"),
		OrdersFeedWSURL:    os.Getenv("ORDERS_FEED_WS_URL"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CMCAPIKey:        os.Getenv("CMC_API_KEY"),

		Debug: getEnvBool("DEBUG", false),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.DriverURLs) == 0 {
		return nil, fmt.Errorf("DRIVER_URLS is required (comma-separated driver base URLs)")
	}

	return cfg, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
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
