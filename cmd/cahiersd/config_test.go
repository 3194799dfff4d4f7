package main

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "DB_DSN", "HTTP_ADDR", "BASE_PATH", "CURRENCY",
		"LOW_STOCK_THRESHOLD", "PAYMENT_DUE_DAYS", "REMINDER_DAYS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr: got %s, want :8080", cfg.Addr)
	}
	if cfg.Ledger.StoreDriver != "memory" {
		t.Errorf("StoreDriver: got %s, want memory", cfg.Ledger.StoreDriver)
	}
	if cfg.Ledger.PaymentTerm != 30*24*time.Hour {
		t.Errorf("PaymentTerm: got %v, want 720h", cfg.Ledger.PaymentTerm)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: got %v, want INFO", cfg.LogLevel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:cahiers.db")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("LOW_STOCK_THRESHOLD", "25")
	t.Setenv("PAYMENT_DUE_DAYS", "45")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Ledger.StoreDriver != "sqlite" || cfg.Ledger.StoreDSN != "file:cahiers.db" {
		t.Errorf("Store: got %s %s", cfg.Ledger.StoreDriver, cfg.Ledger.StoreDSN)
	}
	if cfg.Ledger.LowStockThreshold != 25 {
		t.Errorf("LowStockThreshold: got %d, want 25", cfg.Ledger.LowStockThreshold)
	}
	if cfg.Ledger.PaymentTerm != 45*24*time.Hour {
		t.Errorf("PaymentTerm: got %v, want 1080h", cfg.Ledger.PaymentTerm)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: got %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"DB_DRIVER": "postgres", "DB_DSN": ""}},
		{"bad threshold", map[string]string{"LOW_STOCK_THRESHOLD": "many"}},
		{"zero due days", map[string]string{"PAYMENT_DUE_DAYS": "0"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_DRIVER", "DB_DSN", "LOW_STOCK_THRESHOLD", "PAYMENT_DUE_DAYS", "LOG_LEVEL"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
