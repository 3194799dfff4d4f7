package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xraph/cahiers/extension"
)

// config is the process configuration read from the environment.
type config struct {
	Addr     string
	LogLevel slog.Level
	Ledger   extension.Config
}

// loadConfig reads a .env file when present, then the environment.
func loadConfig() (config, error) {
	_ = godotenv.Load() //nolint:errcheck // a missing .env falls back to the process environment

	cfg := config{
		Addr:   getEnv("HTTP_ADDR", ":8080"),
		Ledger: extension.DefaultConfig(),
	}

	cfg.Ledger.StoreDriver = getEnv("DB_DRIVER", cfg.Ledger.StoreDriver)
	cfg.Ledger.StoreDSN = getEnv("DB_DSN", "")
	cfg.Ledger.MongoDatabase = getEnv("MONGO_DATABASE", cfg.Ledger.MongoDatabase)
	cfg.Ledger.BasePath = getEnv("BASE_PATH", cfg.Ledger.BasePath)
	cfg.Ledger.Currency = getEnv("CURRENCY", cfg.Ledger.Currency)

	var err error
	if cfg.Ledger.LowStockThreshold, err = getEnvInt("LOW_STOCK_THRESHOLD", cfg.Ledger.LowStockThreshold); err != nil {
		return cfg, err
	}
	days, err := getEnvInt("PAYMENT_DUE_DAYS", int64(cfg.Ledger.PaymentTerm/(24*time.Hour)))
	if err != nil {
		return cfg, err
	}
	cfg.Ledger.PaymentTerm = time.Duration(days) * 24 * time.Hour
	days, err = getEnvInt("REMINDER_DAYS", int64(cfg.Ledger.ReminderWindow/(24*time.Hour)))
	if err != nil {
		return cfg, err
	}
	cfg.Ledger.ReminderWindow = time.Duration(days) * 24 * time.Hour

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.Ledger.StoreDriver != "memory" && cfg.Ledger.StoreDSN == "" {
		return cfg, fmt.Errorf("DB_DSN is required for driver %q", cfg.Ledger.StoreDriver)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, raw)
	}
	return n, nil
}
