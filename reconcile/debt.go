package reconcile

import (
	"cmp"
	"slices"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// SaleDebt is one sale's balance tagged with its school year.
type SaleDebt struct {
	SaleID    id.SaleID
	YearLabel string
	YearStart int
	Balance   Balance
}

// YearDebt accumulates the open sales of one school year.
// TotalAmount equals ArticlesAmount: carried debt is never stored on a sale.
type YearDebt struct {
	YearLabel      string      `json:"year_label"`
	YearStart      int         `json:"year_start"`
	ArticlesAmount types.Money `json:"articles_amount"`
	TotalAmount    types.Money `json:"total_amount"`
	Paid           types.Money `json:"paid"`
	Remaining      types.Money `json:"remaining"`
	SaleCount      int         `json:"sale_count"`
	SaleIDs        []id.SaleID `json:"sale_ids"`
}

// DebtSummary is a school's outstanding debt, oldest school year first.
type DebtSummary struct {
	Years []YearDebt  `json:"years"`
	Total types.Money `json:"total"`
}

// HasDebt reports whether anything is owed.
func (d DebtSummary) HasDebt() bool {
	return d.Total.IsPositive()
}

// AggregateDebt groups the sales that still have something remaining by
// school year. The sale identified by exclude is left out; pass id.Nil to
// include every sale.
func AggregateDebt(entries []SaleDebt, exclude id.SaleID) DebtSummary {
	buckets := make(map[string]*YearDebt)
	for _, e := range entries {
		if !exclude.IsNil() && e.SaleID == exclude {
			continue
		}
		if !e.Balance.Remaining.IsPositive() {
			continue
		}

		b, ok := buckets[e.YearLabel]
		if !ok {
			b = &YearDebt{YearLabel: e.YearLabel, YearStart: e.YearStart}
			buckets[e.YearLabel] = b
		}
		b.ArticlesAmount = b.ArticlesAmount.Add(e.Balance.Total)
		b.TotalAmount = b.TotalAmount.Add(e.Balance.Total)
		b.Paid = b.Paid.Add(e.Balance.Paid)
		b.Remaining = b.Remaining.Add(e.Balance.Remaining)
		b.SaleCount++
		b.SaleIDs = append(b.SaleIDs, e.SaleID)
	}

	summary := DebtSummary{Years: make([]YearDebt, 0, len(buckets))}
	for _, b := range buckets {
		summary.Years = append(summary.Years, *b)
		summary.Total = summary.Total.Add(b.Remaining)
	}
	slices.SortFunc(summary.Years, func(a, b YearDebt) int {
		return cmp.Or(cmp.Compare(a.YearStart, b.YearStart), cmp.Compare(a.YearLabel, b.YearLabel))
	})
	return summary
}
