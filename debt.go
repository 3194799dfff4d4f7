package cahiers

import (
	"context"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
)

// DebtOpts tunes SchoolDebt.
type DebtOpts struct {
	// ExcludeSaleID leaves one sale out, typically the one being invoiced.
	ExcludeSaleID id.SaleID
}

// Balance computes a sale's total, paid and remaining amounts from its
// current lines and payments.
func (l *Ledger) Balance(ctx context.Context, saleID id.SaleID) (reconcile.Balance, error) {
	s, err := l.GetSale(ctx, saleID)
	if err != nil {
		return reconcile.Balance{}, err
	}
	return reconcile.BalanceOf(s), nil
}

// SchoolDebt aggregates a school's open balances by school year.
func (l *Ledger) SchoolDebt(ctx context.Context, schoolID id.SchoolID, opts DebtOpts) (reconcile.DebtSummary, error) {
	if _, err := l.store.GetSchool(ctx, schoolID); err != nil {
		return reconcile.DebtSummary{}, err
	}
	return schoolDebt(ctx, l.store, schoolID, opts.ExcludeSaleID)
}

// RecomputeDebt recalculates the debt a sale's school carries on its other
// sales and stamps the sale as reviewed.
func (l *Ledger) RecomputeDebt(ctx context.Context, saleID id.SaleID) (reconcile.DebtSummary, error) {
	var (
		s       *sale.Sale
		summary reconcile.DebtSummary
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if s, err = lockSale(ctx, tx, saleID); err != nil {
			return err
		}
		if summary, err = schoolDebt(ctx, tx, s.SchoolID, saleID); err != nil {
			return err
		}
		s.MarkModified(sale.ModificationDebtRecompute, l.clock())
		if err := tx.UpdateSale(ctx, s); err != nil {
			return err
		}
		return hydrate(ctx, tx, s)
	})
	if err != nil {
		return reconcile.DebtSummary{}, err
	}

	l.logger.Info("school debt recomputed",
		"sale_id", saleID.String(),
		"school_id", s.SchoolID.String(),
		"debt", summary.Total.String(),
		"years", len(summary.Years),
	)
	l.plugins.EmitSaleModified(ctx, s, sale.ModificationDebtRecompute)
	return summary, nil
}

func schoolDebt(ctx context.Context, st store.Store, schoolID id.SchoolID, exclude id.SaleID) (reconcile.DebtSummary, error) {
	sales, err := st.ListSales(ctx, sale.ListOpts{SchoolID: schoolID})
	if err != nil {
		return reconcile.DebtSummary{}, err
	}
	if err := hydrateAll(ctx, st, sales); err != nil {
		return reconcile.DebtSummary{}, err
	}
	years, err := yearIndex(ctx, st)
	if err != nil {
		return reconcile.DebtSummary{}, err
	}

	entries := make([]reconcile.SaleDebt, 0, len(sales))
	for _, s := range sales {
		y := years[s.SchoolYearID]
		entries = append(entries, reconcile.SaleDebt{
			SaleID:    s.ID,
			YearLabel: y.Label(),
			YearStart: y.StartYear,
			Balance:   reconcile.BalanceOf(s),
		})
	}
	return reconcile.AggregateDebt(entries, exclude), nil
}

// yearIndex maps every school year by ID. Unknown IDs yield a zero year.
func yearIndex(ctx context.Context, st store.Store) (map[id.SchoolYearID]schoolyear.SchoolYear, error) {
	list, err := st.ListSchoolYears(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[id.SchoolYearID]schoolyear.SchoolYear, len(list))
	for _, y := range list {
		out[y.ID] = *y
	}
	return out, nil
}

func openBalance(s *sale.Sale, years map[id.SchoolYearID]schoolyear.SchoolYear) reconcile.OpenBalance {
	return reconcile.OpenBalance{
		SaleID:             s.ID,
		YearStart:          years[s.SchoolYearID].StartYear,
		CreatedAt:          s.CreatedAt,
		Remaining:          reconcile.BalanceOf(s).Remaining,
		ActiveInstallments: reconcile.ActiveInstallments(s.Payments),
	}
}
