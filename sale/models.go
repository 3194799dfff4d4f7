// Package sale defines sales, their line items and payment installments.
package sale

import (
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// MaxInstallments is the number of active payments a sale may hold.
const MaxInstallments = 3

// ModificationKind records the last structural change applied to a sale.
type ModificationKind string

const (
	ModificationNone           ModificationKind = ""
	ModificationReplace        ModificationKind = "replace"
	ModificationAdd            ModificationKind = "add"
	ModificationQuantityChange ModificationKind = "quantity_change"
	ModificationLineRemoval    ModificationKind = "line_removal"
	ModificationDebtRecompute  ModificationKind = "debt_recompute"
)

// Status is the derived collection state of a sale.
type Status string

const (
	StatusSettled    Status = "settled"
	StatusOverdue    Status = "overdue"
	StatusInProgress Status = "in_progress"
)

// Sale is a transaction with one school within one school year.
// Totals are never stored; Lines and Payments are populated on reads that
// hydrate the sale.
type Sale struct {
	types.Entity
	ID               id.SaleID        `json:"id"`
	SchoolID         id.SchoolID      `json:"school_id"`
	SchoolYearID     id.SchoolYearID  `json:"school_year_id"`
	DueDate          time.Time        `json:"due_date"`
	ModifiedAt       *time.Time       `json:"modified_at,omitempty"`
	LastModification ModificationKind `json:"last_modification,omitempty"`

	Lines    []LineItem `json:"lines,omitempty"`
	Payments []Payment  `json:"payments,omitempty"`
}

// MarkModified stamps the sale with a modification kind.
func (s *Sale) MarkModified(kind ModificationKind, at time.Time) {
	at = at.UTC()
	s.ModifiedAt = &at
	s.LastModification = kind
	s.TouchAt(at)
}

// WasModified reports whether the sale changed after creation.
func (s Sale) WasModified() bool {
	return s.ModifiedAt != nil
}

// LineItem is one item sold within a sale. Amount is snapshotted from the
// unit price at the time the line was written.
type LineItem struct {
	ID        id.LineItemID `json:"id"`
	SaleID    id.SaleID     `json:"sale_id"`
	ItemID    id.ItemID     `json:"item_id"`
	ItemTitle string        `json:"item_title"`
	UnitPrice types.Money   `json:"unit_price"`
	Quantity  int64         `json:"quantity"`
	Amount    types.Money   `json:"amount"`
	AddedAt   time.Time     `json:"added_at"`
}

// Reprice sets the quantity and recomputes the amount from unitPrice.
func (l *LineItem) Reprice(quantity int64, unitPrice types.Money) {
	l.Quantity = quantity
	l.UnitPrice = unitPrice
	l.Amount = unitPrice.Multiply(quantity)
}

// Payment is one installment paid against a sale.
type Payment struct {
	ID          id.PaymentID `json:"id"`
	SaleID      id.SaleID    `json:"sale_id"`
	Amount      types.Money  `json:"amount"`
	Installment int          `json:"installment"`
	PaidAt      time.Time    `json:"paid_at"`
	Cancelled   bool         `json:"cancelled,omitempty"`
	CancelledAt *time.Time   `json:"cancelled_at,omitempty"`
}

// ListOpts filters sale listings.
type ListOpts struct {
	SchoolID     id.SchoolID
	SchoolYearID id.SchoolYearID
	DueBefore    *time.Time
	Limit        int
	Offset       int
}
