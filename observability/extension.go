// Package observability provides a metrics extension for the ledger that
// records event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/plugin"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnSchoolYearCreated = (*MetricsExtension)(nil)
	_ plugin.OnSchoolCreated     = (*MetricsExtension)(nil)
	_ plugin.OnItemCreated       = (*MetricsExtension)(nil)
	_ plugin.OnStockAdjusted     = (*MetricsExtension)(nil)
	_ plugin.OnLowStock          = (*MetricsExtension)(nil)
	_ plugin.OnSaleCreated       = (*MetricsExtension)(nil)
	_ plugin.OnSaleModified      = (*MetricsExtension)(nil)
	_ plugin.OnSaleDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnSaleSettled       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentAllocated  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceBuilt      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger activity metrics.
// Register it as a ledger plugin to track sales and collections.
type MetricsExtension struct {
	factory MetricFactory

	// Reference data metrics
	SchoolYearCreated Counter
	SchoolCreated     Counter
	ItemCreated       Counter

	// Stock metrics
	UnitsSold     Counter
	UnitsReturned Counter
	LowStock      Counter

	// Sale metrics
	SaleCreated  Counter
	SaleModified Counter
	SaleDeleted  Counter
	SaleSettled  Counter
	SaleTotal    Histogram
	SaleLines    Histogram

	// Payment metrics
	PaymentRecorded  Counter
	PaymentCancelled Counter
	PaymentAmount    Histogram
	PaymentOverflow  Counter
	PaymentChange    Counter

	// Invoice metrics
	InvoiceBuilt     Counter
	InvoiceAmountDue Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Reference data metrics
		SchoolYearCreated: factory.Counter("cahiers.school_year.created"),
		SchoolCreated:     factory.Counter("cahiers.school.created"),
		ItemCreated:       factory.Counter("cahiers.item.created"),

		// Stock metrics
		UnitsSold:     factory.Counter("cahiers.stock.units_sold"),
		UnitsReturned: factory.Counter("cahiers.stock.units_returned"),
		LowStock:      factory.Counter("cahiers.stock.low"),

		// Sale metrics
		SaleCreated:  factory.Counter("cahiers.sale.created"),
		SaleModified: factory.Counter("cahiers.sale.modified"),
		SaleDeleted:  factory.Counter("cahiers.sale.deleted"),
		SaleSettled:  factory.Counter("cahiers.sale.settled"),
		SaleTotal:    factory.Histogram("cahiers.sale.total_amount"),
		SaleLines:    factory.Histogram("cahiers.sale.lines"),

		// Payment metrics
		PaymentRecorded:  factory.Counter("cahiers.payment.recorded"),
		PaymentCancelled: factory.Counter("cahiers.payment.cancelled"),
		PaymentAmount:    factory.Histogram("cahiers.payment.amount"),
		PaymentOverflow:  factory.Counter("cahiers.payment.overflow"),
		PaymentChange:    factory.Counter("cahiers.payment.change_returned"),

		// Invoice metrics
		InvoiceBuilt:     factory.Counter("cahiers.invoice.built"),
		InvoiceAmountDue: factory.Histogram("cahiers.invoice.amount_due"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Reference data hooks
// ──────────────────────────────────────────────────

// OnSchoolYearCreated implements plugin.OnSchoolYearCreated.
func (m *MetricsExtension) OnSchoolYearCreated(_ context.Context, _ *schoolyear.SchoolYear) error {
	m.SchoolYearCreated.Inc()
	return nil
}

// OnSchoolCreated implements plugin.OnSchoolCreated.
func (m *MetricsExtension) OnSchoolCreated(_ context.Context, _ *school.School) error {
	m.SchoolCreated.Inc()
	return nil
}

// OnItemCreated implements plugin.OnItemCreated.
func (m *MetricsExtension) OnItemCreated(_ context.Context, _ *item.Item) error {
	m.ItemCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Stock hooks
// ──────────────────────────────────────────────────

// OnStockAdjusted implements plugin.OnStockAdjusted. Restocks count as
// returned units.
func (m *MetricsExtension) OnStockAdjusted(_ context.Context, _ id.ItemID, delta, _ int64) error {
	if delta < 0 {
		m.UnitsSold.Add(float64(-delta))
	} else {
		m.UnitsReturned.Add(float64(delta))
	}
	return nil
}

// OnLowStock implements plugin.OnLowStock.
func (m *MetricsExtension) OnLowStock(_ context.Context, _ *item.Item, _ int64) error {
	m.LowStock.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleCreated implements plugin.OnSaleCreated.
func (m *MetricsExtension) OnSaleCreated(_ context.Context, s *sale.Sale) error {
	m.SaleCreated.Inc()
	m.SaleLines.Observe(float64(len(s.Lines)))
	m.SaleTotal.Observe(reconcile.Total(s.Lines).Amount.InexactFloat64())
	return nil
}

// OnSaleModified implements plugin.OnSaleModified.
func (m *MetricsExtension) OnSaleModified(_ context.Context, _ *sale.Sale, _ sale.ModificationKind) error {
	m.SaleModified.Inc()
	return nil
}

// OnSaleDeleted implements plugin.OnSaleDeleted.
func (m *MetricsExtension) OnSaleDeleted(_ context.Context, _ id.SaleID) error {
	m.SaleDeleted.Inc()
	return nil
}

// OnSaleSettled implements plugin.OnSaleSettled.
func (m *MetricsExtension) OnSaleSettled(_ context.Context, _ id.SaleID) error {
	m.SaleSettled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, p *sale.Payment) error {
	m.PaymentRecorded.Inc()
	m.PaymentAmount.Observe(p.Amount.Amount.InexactFloat64())
	return nil
}

// OnPaymentAllocated implements plugin.OnPaymentAllocated.
func (m *MetricsExtension) OnPaymentAllocated(_ context.Context, _ id.SchoolID, res reconcile.AllocationResult) error {
	for _, a := range res.Allocations {
		if a.Overflow {
			m.PaymentOverflow.Inc()
		}
	}
	if res.Change.IsPositive() {
		m.PaymentChange.Inc()
	}
	return nil
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (m *MetricsExtension) OnPaymentCancelled(_ context.Context, _ *sale.Payment) error {
	m.PaymentCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceBuilt implements plugin.OnInvoiceBuilt.
func (m *MetricsExtension) OnInvoiceBuilt(_ context.Context, snap *invoice.Snapshot) error {
	m.InvoiceBuilt.Inc()
	m.InvoiceAmountDue.Observe(snap.AmountDue().Amount.InexactFloat64())
	return nil
}
