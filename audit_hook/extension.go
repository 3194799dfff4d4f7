// Package audithook turns ledger events into audit records.
//
// Backends implement Recorder; a RecorderFunc adapts a plain function,
// such as one writing to a structured log.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/plugin"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSchoolYearCreated   = (*Extension)(nil)
	_ plugin.OnSchoolYearActivated = (*Extension)(nil)
	_ plugin.OnSchoolCreated       = (*Extension)(nil)
	_ plugin.OnItemCreated         = (*Extension)(nil)
	_ plugin.OnStockAdjusted       = (*Extension)(nil)
	_ plugin.OnLowStock            = (*Extension)(nil)
	_ plugin.OnSaleCreated         = (*Extension)(nil)
	_ plugin.OnSaleModified        = (*Extension)(nil)
	_ plugin.OnSaleDeleted         = (*Extension)(nil)
	_ plugin.OnSaleSettled         = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnPaymentAllocated    = (*Extension)(nil)
	_ plugin.OnPaymentCancelled    = (*Extension)(nil)
	_ plugin.OnInvoiceBuilt        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Reference data hooks
// ──────────────────────────────────────────────────

// OnSchoolYearCreated implements plugin.OnSchoolYearCreated.
func (e *Extension) OnSchoolYearCreated(ctx context.Context, y *schoolyear.SchoolYear) error {
	return e.record(ctx, ActionSchoolYearCreated, SeverityInfo, OutcomeSuccess,
		ResourceSchoolYear, y.ID.String(), CategoryReference, nil,
		"label", y.Label(),
	)
}

// OnSchoolYearActivated implements plugin.OnSchoolYearActivated.
func (e *Extension) OnSchoolYearActivated(ctx context.Context, y *schoolyear.SchoolYear) error {
	return e.record(ctx, ActionSchoolYearActivated, SeverityInfo, OutcomeSuccess,
		ResourceSchoolYear, y.ID.String(), CategoryReference, nil,
		"label", y.Label(),
	)
}

// OnSchoolCreated implements plugin.OnSchoolCreated.
func (e *Extension) OnSchoolCreated(ctx context.Context, s *school.School) error {
	return e.record(ctx, ActionSchoolCreated, SeverityInfo, OutcomeSuccess,
		ResourceSchool, s.ID.String(), CategoryReference, nil,
		"name", s.Name,
	)
}

// OnItemCreated implements plugin.OnItemCreated.
func (e *Extension) OnItemCreated(ctx context.Context, it *item.Item) error {
	return e.record(ctx, ActionItemCreated, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ID.String(), CategoryInventory, nil,
		"title", it.Title,
		"unit_price", it.UnitPrice.String(),
		"stock", it.StockQuantity,
	)
}

// ──────────────────────────────────────────────────
// Stock hooks
// ──────────────────────────────────────────────────

// OnStockAdjusted implements plugin.OnStockAdjusted.
func (e *Extension) OnStockAdjusted(ctx context.Context, itemID id.ItemID, delta, stockAfter int64) error {
	return e.record(ctx, ActionStockAdjusted, SeverityInfo, OutcomeSuccess,
		ResourceItem, itemID.String(), CategoryInventory, nil,
		"delta", delta,
		"stock_after", stockAfter,
	)
}

// OnLowStock implements plugin.OnLowStock.
func (e *Extension) OnLowStock(ctx context.Context, it *item.Item, threshold int64) error {
	return e.record(ctx, ActionStockLow, SeverityWarning, OutcomeSuccess,
		ResourceItem, it.ID.String(), CategoryInventory, nil,
		"title", it.Title,
		"stock", it.StockQuantity,
		"threshold", threshold,
	)
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleCreated implements plugin.OnSaleCreated.
func (e *Extension) OnSaleCreated(ctx context.Context, s *sale.Sale) error {
	return e.record(ctx, ActionSaleCreated, SeverityInfo, OutcomeSuccess,
		ResourceSale, s.ID.String(), CategorySales, nil,
		"school_id", s.SchoolID.String(),
		"school_year_id", s.SchoolYearID.String(),
		"lines", len(s.Lines),
		"total", reconcile.Total(s.Lines).String(),
	)
}

// OnSaleModified implements plugin.OnSaleModified.
func (e *Extension) OnSaleModified(ctx context.Context, s *sale.Sale, kind sale.ModificationKind) error {
	return e.record(ctx, ActionSaleModified, SeverityInfo, OutcomeSuccess,
		ResourceSale, s.ID.String(), CategorySales, nil,
		"kind", string(kind),
		"lines", len(s.Lines),
		"total", reconcile.Total(s.Lines).String(),
	)
}

// OnSaleDeleted implements plugin.OnSaleDeleted. Deletions are flagged as
// warnings since they erase payment history.
func (e *Extension) OnSaleDeleted(ctx context.Context, saleID id.SaleID) error {
	return e.record(ctx, ActionSaleDeleted, SeverityWarning, OutcomeSuccess,
		ResourceSale, saleID.String(), CategorySales, nil,
	)
}

// OnSaleSettled implements plugin.OnSaleSettled.
func (e *Extension) OnSaleSettled(ctx context.Context, saleID id.SaleID) error {
	return e.record(ctx, ActionSaleSettled, SeverityInfo, OutcomeSuccess,
		ResourceSale, saleID.String(), CategoryPayment, nil,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, p *sale.Payment) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"sale_id", p.SaleID.String(),
		"amount", p.Amount.String(),
		"installment", p.Installment,
	)
}

// OnPaymentAllocated implements plugin.OnPaymentAllocated. A payment that
// returned change is recorded as partial.
func (e *Extension) OnPaymentAllocated(ctx context.Context, schoolID id.SchoolID, res reconcile.AllocationResult) error {
	outcome := OutcomeSuccess
	if res.Change.IsPositive() {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionPaymentAllocated, SeverityInfo, outcome,
		ResourceSchool, schoolID.String(), CategoryPayment, nil,
		"sales", len(res.Allocations),
		"applied", res.Applied.String(),
		"change", res.Change.String(),
	)
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (e *Extension) OnPaymentCancelled(ctx context.Context, p *sale.Payment) error {
	return e.record(ctx, ActionPaymentCancelled, SeverityWarning, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"sale_id", p.SaleID.String(),
		"amount", p.Amount.String(),
		"installment", p.Installment,
	)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceBuilt implements plugin.OnInvoiceBuilt.
func (e *Extension) OnInvoiceBuilt(ctx context.Context, snap *invoice.Snapshot) error {
	return e.record(ctx, ActionInvoiceBuilt, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, snap.Number, CategoryBilling, nil,
		"sale_id", snap.Sale.ID.String(),
		"status", string(snap.Status),
		"amount_due", snap.AmountDue().String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
