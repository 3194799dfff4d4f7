package cahiers

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cahiers/plugin"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/types"
)

// Default configuration values.
const (
	DefaultPaymentTerm       = 30 * 24 * time.Hour
	DefaultLowStockThreshold = 100
	DefaultReminderWindow    = 7 * 24 * time.Hour
)

// Ledger is the sales and debt engine for school notebook orders.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	// Configuration
	currency          string
	paymentTerm       time.Duration
	lowStockThreshold int64
	reminderWindow    time.Duration
	sessionPolicy     reconcile.SessionPolicy
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		now:               time.Now,
		currency:          types.DefaultCurrency,
		paymentTerm:       DefaultPaymentTerm,
		lowStockThreshold: DefaultLowStockThreshold,
		reminderWindow:    DefaultReminderWindow,
		sessionPolicy:     reconcile.DefaultSessionPolicy(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCurrency sets the currency new items and payments are expressed in.
func WithCurrency(currency string) Option {
	return func(l *Ledger) {
		if currency != "" {
			l.currency = types.Zero(currency).Currency
		}
	}
}

// WithPaymentTerm sets how long after a sale its payment falls due.
func WithPaymentTerm(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.paymentTerm = d
		}
	}
}

// WithLowStockThreshold sets the stock level under which items are reported.
func WithLowStockThreshold(n int64) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.lowStockThreshold = n
		}
	}
}

// WithReminderWindow sets how far ahead UpcomingDueSales looks.
func WithReminderWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.reminderWindow = d
		}
	}
}

// WithSessionPolicy sets how invoice lines are grouped into sessions.
func WithSessionPolicy(p reconcile.SessionPolicy) Option {
	return func(l *Ledger) {
		l.sessionPolicy = p
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithHookTimeout bounds how long a plugin hook may run.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Currency returns the ledger currency.
func (l *Ledger) Currency() string { return l.currency }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("cahiers ledger started",
		"currency", l.currency,
		"payment_term", l.paymentTerm,
		"low_stock_threshold", l.lowStockThreshold,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// money tags an amount with the ledger currency when it has none.
func (l *Ledger) money(m types.Money) types.Money {
	return m.In(l.currency)
}
