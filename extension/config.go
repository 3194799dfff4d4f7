package extension

import (
	"time"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/reconcile"
)

// Config holds the cahiers extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.cahiers" or "cahiers" keys).
type Config struct {
	// DisableRoutes prevents building the HTTP handler.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for ledger routes (default: "/cahiers").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// StoreDriver selects the backend: memory, postgres, mysql, sqlite or
	// mongo (default: memory). Ignored when a store is set with WithStore.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the connection string of the backend.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// MongoDatabase names the database used by the mongo driver (default: "cahiers").
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database"`

	// Currency of item prices and payments (default: "xof").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// PaymentTerm is how long after a sale its payment falls due (default: 720h).
	PaymentTerm time.Duration `json:"payment_term" mapstructure:"payment_term" yaml:"payment_term"`

	// LowStockThreshold is the stock level under which items are reported (default: 100).
	LowStockThreshold int64 `json:"low_stock_threshold" mapstructure:"low_stock_threshold" yaml:"low_stock_threshold"`

	// ReminderWindow is how far ahead upcoming due dates are reported (default: 168h).
	ReminderWindow time.Duration `json:"reminder_window" mapstructure:"reminder_window" yaml:"reminder_window"`

	// Sessions configures how invoice lines are grouped into deliveries.
	Sessions *reconcile.SessionPolicy `json:"sessions,omitempty" mapstructure:"sessions" yaml:"sessions,omitempty"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/cahiers",
		StoreDriver:       "memory",
		MongoDatabase:     "cahiers",
		Currency:          "xof",
		PaymentTerm:       30 * 24 * time.Hour,
		LowStockThreshold: 100,
		ReminderWindow:    7 * 24 * time.Hour,
	}
}

// LedgerOptions converts the ledger settings of c into cahiers options.
func (c Config) LedgerOptions() []cahiers.Option {
	opts := []cahiers.Option{
		cahiers.WithCurrency(c.Currency),
		cahiers.WithPaymentTerm(c.PaymentTerm),
		cahiers.WithLowStockThreshold(c.LowStockThreshold),
		cahiers.WithReminderWindow(c.ReminderWindow),
	}
	if c.Sessions != nil {
		opts = append(opts, cahiers.WithSessionPolicy(*c.Sessions))
	}
	return opts
}
