// Package reconcile holds the pure ledger arithmetic: sale balances, school
// debt aggregation, payment allocation, invoice sessions and sale status.
//
// Nothing here touches storage. Every function is a deterministic function of
// the line items and payments it is given, so callers recompute on demand
// instead of caching totals.
package reconcile

import (
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

// Balance is the computed position of one sale.
type Balance struct {
	Total     types.Money `json:"total"`
	Paid      types.Money `json:"paid"`
	Remaining types.Money `json:"remaining"`
}

// Settled reports whether nothing remains to be paid.
func (b Balance) Settled() bool {
	return !b.Remaining.IsPositive()
}

// Total sums the line amounts.
func Total(lines []sale.LineItem) types.Money {
	var total types.Money
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Paid sums the amounts of payments that are not cancelled.
func Paid(payments []sale.Payment) types.Money {
	var paid types.Money
	for _, p := range payments {
		if p.Cancelled {
			continue
		}
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Remaining is total minus paid, floored at zero.
func Remaining(total, paid types.Money) types.Money {
	return total.Subtract(paid).ClampZero()
}

// Compute derives the balance of a sale from its lines and payments.
func Compute(lines []sale.LineItem, payments []sale.Payment) Balance {
	total := Total(lines)
	paid := Paid(payments)
	return Balance{
		Total:     total,
		Paid:      paid,
		Remaining: Remaining(total, paid),
	}
}

// BalanceOf computes the balance of a hydrated sale.
func BalanceOf(s *sale.Sale) Balance {
	return Compute(s.Lines, s.Payments)
}

// ActiveInstallments counts payments that are not cancelled.
func ActiveInstallments(payments []sale.Payment) int {
	n := 0
	for _, p := range payments {
		if !p.Cancelled {
			n++
		}
	}
	return n
}

// NextInstallment returns the installment number the next payment takes:
// the lowest slot in 1..MaxInstallments not held by an active payment.
// Without cancellations this is the highest existing number plus one.
// It returns 0 when every slot is taken.
func NextInstallment(payments []sale.Payment) int {
	var used [sale.MaxInstallments + 1]bool
	for _, p := range payments {
		if !p.Cancelled && p.Installment >= 1 && p.Installment <= sale.MaxInstallments {
			used[p.Installment] = true
		}
	}
	for n := 1; n <= sale.MaxInstallments; n++ {
		if !used[n] {
			return n
		}
	}
	return 0
}
