package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
)

// DefaultHookTimeout bounds how long a single hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook interfaces are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onSchoolYearCreated   []OnSchoolYearCreated
	onSchoolYearActivated []OnSchoolYearActivated
	onSchoolCreated       []OnSchoolCreated
	onItemCreated         []OnItemCreated
	onStockAdjusted       []OnStockAdjusted
	onLowStock            []OnLowStock
	onSaleCreated         []OnSaleCreated
	onSaleModified        []OnSaleModified
	onSaleDeleted         []OnSaleDeleted
	onSaleSettled         []OnSaleSettled
	onPaymentRecorded     []OnPaymentRecorded
	onPaymentAllocated    []OnPaymentAllocated
	onPaymentCancelled    []OnPaymentCancelled
	onInvoiceBuilt        []OnInvoiceBuilt
	renderers             map[string]InvoiceRenderer
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:    slog.Default(),
		timeout:   DefaultHookTimeout,
		renderers: make(map[string]InvoiceRenderer),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(ok bool, name string, add func()) {
		if ok {
			add()
			hooks = append(hooks, name)
		}
	}

	v1, ok := p.(OnInit)
	cache(ok, "OnInit", func() { r.onInit = append(r.onInit, v1) })
	v2, ok := p.(OnShutdown)
	cache(ok, "OnShutdown", func() { r.onShutdown = append(r.onShutdown, v2) })
	v3, ok := p.(OnSchoolYearCreated)
	cache(ok, "OnSchoolYearCreated", func() { r.onSchoolYearCreated = append(r.onSchoolYearCreated, v3) })
	v4, ok := p.(OnSchoolYearActivated)
	cache(ok, "OnSchoolYearActivated", func() { r.onSchoolYearActivated = append(r.onSchoolYearActivated, v4) })
	v5, ok := p.(OnSchoolCreated)
	cache(ok, "OnSchoolCreated", func() { r.onSchoolCreated = append(r.onSchoolCreated, v5) })
	v6, ok := p.(OnItemCreated)
	cache(ok, "OnItemCreated", func() { r.onItemCreated = append(r.onItemCreated, v6) })
	v7, ok := p.(OnStockAdjusted)
	cache(ok, "OnStockAdjusted", func() { r.onStockAdjusted = append(r.onStockAdjusted, v7) })
	v8, ok := p.(OnLowStock)
	cache(ok, "OnLowStock", func() { r.onLowStock = append(r.onLowStock, v8) })
	v9, ok := p.(OnSaleCreated)
	cache(ok, "OnSaleCreated", func() { r.onSaleCreated = append(r.onSaleCreated, v9) })
	v10, ok := p.(OnSaleModified)
	cache(ok, "OnSaleModified", func() { r.onSaleModified = append(r.onSaleModified, v10) })
	v11, ok := p.(OnSaleDeleted)
	cache(ok, "OnSaleDeleted", func() { r.onSaleDeleted = append(r.onSaleDeleted, v11) })
	v12, ok := p.(OnSaleSettled)
	cache(ok, "OnSaleSettled", func() { r.onSaleSettled = append(r.onSaleSettled, v12) })
	v13, ok := p.(OnPaymentRecorded)
	cache(ok, "OnPaymentRecorded", func() { r.onPaymentRecorded = append(r.onPaymentRecorded, v13) })
	v14, ok := p.(OnPaymentAllocated)
	cache(ok, "OnPaymentAllocated", func() { r.onPaymentAllocated = append(r.onPaymentAllocated, v14) })
	v15, ok := p.(OnPaymentCancelled)
	cache(ok, "OnPaymentCancelled", func() { r.onPaymentCancelled = append(r.onPaymentCancelled, v15) })
	v16, ok := p.(OnInvoiceBuilt)
	cache(ok, "OnInvoiceBuilt", func() { r.onInvoiceBuilt = append(r.onInvoiceBuilt, v16) })
	v17, ok := p.(InvoiceRenderer)
	cache(ok, "InvoiceRenderer", func() { r.renderers[v17.Format()] = v17 })

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.plugins)
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Renderer returns the invoice renderer registered for format.
func (r *Registry) Renderer(format string) (InvoiceRenderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.renderers[format]
	return v, ok
}

// Formats lists the registered invoice formats, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.renderers))
	for f := range r.renderers {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin of a hook list, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list func() []T, call func(T) error) {
	r.mu.RLock()
	plugins := list()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSchoolYearCreated emits a school year created event.
func (r *Registry) EmitSchoolYearCreated(ctx context.Context, y *schoolyear.SchoolYear) {
	emit(ctx, r, "OnSchoolYearCreated", func() []OnSchoolYearCreated { return r.onSchoolYearCreated }, func(p OnSchoolYearCreated) error {
		return p.OnSchoolYearCreated(ctx, y)
	})
}

// EmitSchoolYearActivated emits a school year activated event.
func (r *Registry) EmitSchoolYearActivated(ctx context.Context, y *schoolyear.SchoolYear) {
	emit(ctx, r, "OnSchoolYearActivated", func() []OnSchoolYearActivated { return r.onSchoolYearActivated }, func(p OnSchoolYearActivated) error {
		return p.OnSchoolYearActivated(ctx, y)
	})
}

// EmitSchoolCreated emits a school created event.
func (r *Registry) EmitSchoolCreated(ctx context.Context, s *school.School) {
	emit(ctx, r, "OnSchoolCreated", func() []OnSchoolCreated { return r.onSchoolCreated }, func(p OnSchoolCreated) error {
		return p.OnSchoolCreated(ctx, s)
	})
}

// EmitItemCreated emits an item created event.
func (r *Registry) EmitItemCreated(ctx context.Context, it *item.Item) {
	emit(ctx, r, "OnItemCreated", func() []OnItemCreated { return r.onItemCreated }, func(p OnItemCreated) error {
		return p.OnItemCreated(ctx, it)
	})
}

// EmitStockAdjusted emits a stock adjusted event.
func (r *Registry) EmitStockAdjusted(ctx context.Context, itemID id.ItemID, delta, stockAfter int64) {
	emit(ctx, r, "OnStockAdjusted", func() []OnStockAdjusted { return r.onStockAdjusted }, func(p OnStockAdjusted) error {
		return p.OnStockAdjusted(ctx, itemID, delta, stockAfter)
	})
}

// EmitLowStock emits a low stock event.
func (r *Registry) EmitLowStock(ctx context.Context, it *item.Item, threshold int64) {
	emit(ctx, r, "OnLowStock", func() []OnLowStock { return r.onLowStock }, func(p OnLowStock) error {
		return p.OnLowStock(ctx, it, threshold)
	})
}

// EmitSaleCreated emits a sale created event.
func (r *Registry) EmitSaleCreated(ctx context.Context, s *sale.Sale) {
	emit(ctx, r, "OnSaleCreated", func() []OnSaleCreated { return r.onSaleCreated }, func(p OnSaleCreated) error {
		return p.OnSaleCreated(ctx, s)
	})
}

// EmitSaleModified emits a sale modified event.
func (r *Registry) EmitSaleModified(ctx context.Context, s *sale.Sale, kind sale.ModificationKind) {
	emit(ctx, r, "OnSaleModified", func() []OnSaleModified { return r.onSaleModified }, func(p OnSaleModified) error {
		return p.OnSaleModified(ctx, s, kind)
	})
}

// EmitSaleDeleted emits a sale deleted event.
func (r *Registry) EmitSaleDeleted(ctx context.Context, saleID id.SaleID) {
	emit(ctx, r, "OnSaleDeleted", func() []OnSaleDeleted { return r.onSaleDeleted }, func(p OnSaleDeleted) error {
		return p.OnSaleDeleted(ctx, saleID)
	})
}

// EmitSaleSettled emits a sale settled event.
func (r *Registry) EmitSaleSettled(ctx context.Context, saleID id.SaleID) {
	emit(ctx, r, "OnSaleSettled", func() []OnSaleSettled { return r.onSaleSettled }, func(p OnSaleSettled) error {
		return p.OnSaleSettled(ctx, saleID)
	})
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay *sale.Payment) {
	emit(ctx, r, "OnPaymentRecorded", func() []OnPaymentRecorded { return r.onPaymentRecorded }, func(p OnPaymentRecorded) error {
		return p.OnPaymentRecorded(ctx, pay)
	})
}

// EmitPaymentAllocated emits a payment allocated event.
func (r *Registry) EmitPaymentAllocated(ctx context.Context, schoolID id.SchoolID, res reconcile.AllocationResult) {
	emit(ctx, r, "OnPaymentAllocated", func() []OnPaymentAllocated { return r.onPaymentAllocated }, func(p OnPaymentAllocated) error {
		return p.OnPaymentAllocated(ctx, schoolID, res)
	})
}

// EmitPaymentCancelled emits a payment cancelled event.
func (r *Registry) EmitPaymentCancelled(ctx context.Context, pay *sale.Payment) {
	emit(ctx, r, "OnPaymentCancelled", func() []OnPaymentCancelled { return r.onPaymentCancelled }, func(p OnPaymentCancelled) error {
		return p.OnPaymentCancelled(ctx, pay)
	})
}

// EmitInvoiceBuilt emits an invoice built event.
func (r *Registry) EmitInvoiceBuilt(ctx context.Context, snap *invoice.Snapshot) {
	emit(ctx, r, "OnInvoiceBuilt", func() []OnInvoiceBuilt { return r.onInvoiceBuilt }, func(p OnInvoiceBuilt) error {
		return p.OnInvoiceBuilt(ctx, snap)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a ledger operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
