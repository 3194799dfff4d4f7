// Package extension provides the Forge extension adapter for cahiers.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.cahiers" or "cahiers" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/httpapi"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/store/gormstore"
	"github.com/xraph/cahiers/store/memory"
	"github.com/xraph/cahiers/store/mongo"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "cahiers"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "School stationery sales and debt ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *cahiers.Ledger
	store      store.Store
	handler    http.Handler
	ledgerOpts []cahiers.Option
}

// New creates a new cahiers Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *cahiers.Ledger { return e.engine }

// Handler returns the HTTP API, or nil when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// opens the store, builds the ledger and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}
	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*cahiers.Ledger, error) {
		return e.engine, nil
	})
}

// build opens the store when none was supplied, then creates the ledger
// and, unless routes are disabled, its HTTP handler.
func (e *Extension) build() error {
	if e.store == nil {
		s, err := OpenStore(e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = cahiers.New(e.store, e.buildLedgerOpts()...)

	e.handler = nil
	if !e.config.DisableRoutes {
		e.handler = httpapi.New(e.engine, httpapi.WithBasePath(e.config.BasePath)).Router()
	}
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("cahiers: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("cahiers: store not initialized")
	}
	return e.store.Ping(ctx)
}

// OpenStore builds the backend named by cfg.StoreDriver. The memory store
// is used when no driver is set.
func OpenStore(cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return memory.New(), nil
	case gormstore.DriverPostgres, gormstore.DriverMySQL, gormstore.DriverSQLite:
		return gormstore.Open(cfg.StoreDriver, cfg.StoreDSN)
	case "mongo", "mongodb":
		return mongo.Open(cfg.StoreDSN, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("cahiers: unknown store driver %q", cfg.StoreDriver)
	}
}

// buildLedgerOpts constructs cahiers.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []cahiers.Option {
	opts := e.config.LedgerOptions()

	// Append any pass-through ledger options.
	return append(opts, e.ledgerOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("cahiers: configuration is required but not found in config files; " +
				"ensure 'extensions.cahiers' or 'cahiers' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("cahiers: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("currency", e.config.Currency),
		forge.F("payment_term", e.config.PaymentTerm),
		forge.F("low_stock_threshold", e.config.LowStockThreshold),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.cahiers", "cahiers"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("cahiers: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("cahiers: failed to bind config", forge.F("key", key))
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.PaymentTerm == 0 {
		cfg.PaymentTerm = defaults.PaymentTerm
	}
	if cfg.LowStockThreshold == 0 {
		cfg.LowStockThreshold = defaults.LowStockThreshold
	}
	if cfg.ReminderWindow == 0 {
		cfg.ReminderWindow = defaults.ReminderWindow
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.MongoDatabase == "" {
		yamlConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.PaymentTerm == 0 {
		yamlConfig.PaymentTerm = programmaticConfig.PaymentTerm
	}
	if yamlConfig.LowStockThreshold == 0 {
		yamlConfig.LowStockThreshold = programmaticConfig.LowStockThreshold
	}
	if yamlConfig.ReminderWindow == 0 {
		yamlConfig.ReminderWindow = programmaticConfig.ReminderWindow
	}
	if yamlConfig.Sessions == nil {
		yamlConfig.Sessions = programmaticConfig.Sessions
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
