package reconcile

import (
	"cmp"
	"slices"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

// OpenBalance is a sale that can absorb part of a payment.
type OpenBalance struct {
	SaleID             id.SaleID
	YearStart          int
	CreatedAt          time.Time
	Remaining          types.Money
	ActiveInstallments int
}

// accepts reports whether another installment may be recorded on the sale.
func (o OpenBalance) accepts() bool {
	return o.Remaining.IsPositive() && o.ActiveInstallments < sale.MaxInstallments
}

// Allocation is the share of a payment applied to one sale.
type Allocation struct {
	SaleID        id.SaleID   `json:"sale_id"`
	Amount        types.Money `json:"amount"`
	BalanceBefore types.Money `json:"balance_before"`
	BalanceAfter  types.Money `json:"balance_after"`
	Overflow      bool        `json:"overflow"`
}

// AllocationResult describes how a payment was spread.
type AllocationResult struct {
	Allocations []Allocation `json:"allocations"`
	Applied     types.Money  `json:"applied"`
	Change      types.Money  `json:"change"`
}

// Allocate spreads amount over a school's open balances: the target sale
// first, then the other sales in overflow order. Each sale consumes at most
// its remaining balance. Sales that already hold the maximum number of
// installments are skipped. Whatever is left is returned as change.
func Allocate(amount types.Money, target OpenBalance, others []OpenBalance) AllocationResult {
	res := AllocationResult{Applied: types.Zero(amount.Currency), Change: types.Zero(amount.Currency)}
	if !amount.IsPositive() {
		return res
	}

	rest := amount
	take := func(o OpenBalance, overflow bool) {
		share := rest.Min(o.Remaining)
		res.Allocations = append(res.Allocations, Allocation{
			SaleID:        o.SaleID,
			Amount:        share,
			BalanceBefore: o.Remaining,
			BalanceAfter:  o.Remaining.Subtract(share),
			Overflow:      overflow,
		})
		res.Applied = res.Applied.Add(share)
		rest = rest.Subtract(share)
	}

	if target.accepts() {
		take(target, false)
	}

	for _, o := range OverflowOrder(others) {
		if !rest.IsPositive() {
			break
		}
		if o.SaleID == target.SaleID || !o.accepts() {
			continue
		}
		take(o, true)
	}

	res.Change = rest
	return res
}

// OverflowOrder returns a copy of balances sorted the way overflow is
// applied: most recent school year first, then oldest sale first.
func OverflowOrder(balances []OpenBalance) []OpenBalance {
	out := slices.Clone(balances)
	slices.SortStableFunc(out, func(a, b OpenBalance) int {
		return cmp.Or(
			cmp.Compare(b.YearStart, a.YearStart),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.SaleID.String(), b.SaleID.String()),
		)
	})
	return out
}
