// Package plugin provides the extension points of the ledger.
// Plugins hook into lifecycle events after the change they describe has
// been committed; a failing hook is logged and never undoes the change.
package plugin

import (
	"context"
	"io"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Reference data hooks
// ──────────────────────────────────────────────────

// OnSchoolYearCreated is called when a school year is opened.
type OnSchoolYearCreated interface {
	Plugin
	OnSchoolYearCreated(ctx context.Context, y *schoolyear.SchoolYear) error
}

// OnSchoolYearActivated is called when a school year becomes the current one.
type OnSchoolYearActivated interface {
	Plugin
	OnSchoolYearActivated(ctx context.Context, y *schoolyear.SchoolYear) error
}

// OnSchoolCreated is called when a school is registered.
type OnSchoolCreated interface {
	Plugin
	OnSchoolCreated(ctx context.Context, s *school.School) error
}

// OnItemCreated is called when a catalog item is added.
type OnItemCreated interface {
	Plugin
	OnItemCreated(ctx context.Context, it *item.Item) error
}

// ──────────────────────────────────────────────────
// Stock hooks
// ──────────────────────────────────────────────────

// OnStockAdjusted is called once per item whose stock changed in an operation.
type OnStockAdjusted interface {
	Plugin
	OnStockAdjusted(ctx context.Context, itemID id.ItemID, delta, stockAfter int64) error
}

// OnLowStock is called when an adjustment leaves an item below the
// configured threshold.
type OnLowStock interface {
	Plugin
	OnLowStock(ctx context.Context, it *item.Item, threshold int64) error
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleCreated is called when a sale is recorded.
type OnSaleCreated interface {
	Plugin
	OnSaleCreated(ctx context.Context, s *sale.Sale) error
}

// OnSaleModified is called after line items were added, edited, removed or
// replaced, and after a debt recompute.
type OnSaleModified interface {
	Plugin
	OnSaleModified(ctx context.Context, s *sale.Sale, kind sale.ModificationKind) error
}

// OnSaleDeleted is called when a sale is removed.
type OnSaleDeleted interface {
	Plugin
	OnSaleDeleted(ctx context.Context, saleID id.SaleID) error
}

// OnSaleSettled is called when a payment brings a sale's remaining balance to zero.
type OnSaleSettled interface {
	Plugin
	OnSaleSettled(ctx context.Context, saleID id.SaleID) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called for each installment written.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p *sale.Payment) error
}

// OnPaymentAllocated is called once per accepted payment with the full
// allocation across the school's sales.
type OnPaymentAllocated interface {
	Plugin
	OnPaymentAllocated(ctx context.Context, schoolID id.SchoolID, res reconcile.AllocationResult) error
}

// OnPaymentCancelled is called when an installment is cancelled.
type OnPaymentCancelled interface {
	Plugin
	OnPaymentCancelled(ctx context.Context, p *sale.Payment) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceBuilt is called each time an invoice snapshot is assembled.
type OnInvoiceBuilt interface {
	Plugin
	OnInvoiceBuilt(ctx context.Context, snap *invoice.Snapshot) error
}

// InvoiceRenderer turns a snapshot into a document. Renderers must treat
// the snapshot as read-only.
type InvoiceRenderer interface {
	Plugin
	Format() string      // "xlsx", "pdf", "html", ...
	ContentType() string // MIME type of the output
	Render(ctx context.Context, snap *invoice.Snapshot, w io.Writer) error
}
