// Package invoice defines the read-only view of a sale handed to invoice
// renderers. A Snapshot is assembled from persisted rows on every request and
// is never stored.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/types"
)

// Snapshot is everything a renderer needs to print one sale.
type Snapshot struct {
	Number     string                `json:"number"`
	IssuedAt   time.Time             `json:"issued_at"`
	Sale       sale.Sale             `json:"sale"`
	School     school.School         `json:"school"`
	SchoolYear schoolyear.SchoolYear `json:"school_year"`

	// Lines are ordered by AddedAt, Payments by installment.
	Lines    []sale.LineItem     `json:"lines"`
	Payments []sale.Payment      `json:"payments"`
	Sessions []reconcile.Session `json:"sessions"`

	Balance          reconcile.Balance     `json:"balance"`
	Status           sale.Status           `json:"status"`
	InstallmentsLeft int                   `json:"installments_left"`
	PriorDebt        reconcile.DebtSummary `json:"prior_debt"`
}

// Number formats the invoice number of a sale: "F-<year>-<first 8 id chars>".
func Number(saleID id.SaleID, createdAt time.Time) string {
	suffix := saleID.Suffix()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("F-%d-%s", createdAt.Year(), strings.ToUpper(suffix))
}

// AmountDue is what the school owes in total: this sale's remaining balance
// plus its open debt on other sales.
func (s Snapshot) AmountDue() types.Money {
	return s.Balance.Remaining.Add(s.PriorDebt.Total)
}

// ActivePayments returns the payments that count toward the balance.
func (s Snapshot) ActivePayments() []sale.Payment {
	out := make([]sale.Payment, 0, len(s.Payments))
	for _, p := range s.Payments {
		if !p.Cancelled {
			out = append(out, p)
		}
	}
	return out
}

// Modified reports whether the sale changed after it was first recorded.
func (s Snapshot) Modified() bool {
	return s.Sale.WasModified()
}
