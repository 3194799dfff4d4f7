package cahiers

import (
	"context"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/types"
)

// PaymentOpts tunes RecordPayment.
type PaymentOpts struct {
	// PaidAt defaults to now.
	PaidAt time.Time
}

// PaymentReceipt describes what a recorded payment did.
type PaymentReceipt struct {
	// Payments holds one installment per sale that received money, the
	// target sale first.
	Payments    []sale.Payment         `json:"payments"`
	Allocations []reconcile.Allocation `json:"allocations"`
	Applied     types.Money            `json:"applied"`
	// Change is the part nothing could absorb. It is not recorded.
	Change types.Money `json:"change"`
}

// RecordPayment pays amount against a sale. What exceeds the sale's
// remaining balance flows to the school's other open sales, most recent
// school year first, and whatever is left comes back as change.
//
// Checks run in order: the sale exists, it is not settled, it holds fewer
// than three active installments, and amount is positive.
func (l *Ledger) RecordPayment(ctx context.Context, saleID id.SaleID, amount types.Money, opts PaymentOpts) (*PaymentReceipt, error) {
	paidAt := opts.PaidAt.UTC()
	if opts.PaidAt.IsZero() {
		paidAt = l.clock()
	}

	var (
		receipt  *PaymentReceipt
		schoolID id.SchoolID
		settled  []id.SaleID
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		target, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		schoolID = target.SchoolID

		sales, err := tx.LockSchoolSales(ctx, schoolID)
		if err != nil {
			return err
		}
		if err := hydrateAll(ctx, tx, sales); err != nil {
			return err
		}
		byID := make(map[id.SaleID]*sale.Sale, len(sales))
		for _, s := range sales {
			byID[s.ID] = s
		}
		target, ok := byID[saleID]
		if !ok {
			return ErrSaleNotFound
		}

		if reconcile.BalanceOf(target).Settled() {
			return ErrSaleSettled
		}
		if reconcile.ActiveInstallments(target.Payments) >= sale.MaxInstallments {
			return ErrInstallmentLimit
		}
		amt, err := l.ledgerMoney("amount", amount)
		if err != nil {
			return err
		}
		if !amt.IsPositive() {
			return ValidationError{Field: "amount", Message: "must be greater than 0"}
		}

		years, err := yearIndex(ctx, tx)
		if err != nil {
			return err
		}
		others := make([]reconcile.OpenBalance, 0, len(sales))
		for _, s := range sales {
			if s.ID != saleID {
				others = append(others, openBalance(s, years))
			}
		}
		res := reconcile.Allocate(amt, openBalance(target, years), others)

		receipt = &PaymentReceipt{Allocations: res.Allocations, Applied: res.Applied, Change: res.Change}
		for _, a := range res.Allocations {
			s := byID[a.SaleID]
			p := sale.Payment{
				ID:          id.NewPaymentID(),
				SaleID:      s.ID,
				Amount:      a.Amount,
				Installment: reconcile.NextInstallment(s.Payments),
				PaidAt:      paidAt,
			}
			if err := tx.CreatePayment(ctx, &p); err != nil {
				return err
			}
			s.Payments = append(s.Payments, p)
			receipt.Payments = append(receipt.Payments, p)
			if !a.BalanceAfter.IsPositive() {
				settled = append(settled, s.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("payment recorded",
		"sale_id", saleID.String(),
		"school_id", schoolID.String(),
		"amount", amount.String(),
		"applied", receipt.Applied.String(),
		"change", receipt.Change.String(),
		"sales", len(receipt.Payments),
	)

	for i := range receipt.Payments {
		l.plugins.EmitPaymentRecorded(ctx, &receipt.Payments[i])
	}
	l.plugins.EmitPaymentAllocated(ctx, schoolID, reconcile.AllocationResult{
		Allocations: receipt.Allocations,
		Applied:     receipt.Applied,
		Change:      receipt.Change,
	})
	for _, sid := range settled {
		l.plugins.EmitSaleSettled(ctx, sid)
	}
	return receipt, nil
}

// CancelPayment voids an installment. Its amount counts toward the sale's
// remaining balance again and its installment slot becomes free.
func (l *Ledger) CancelPayment(ctx context.Context, paymentID id.PaymentID) (*sale.Payment, error) {
	var p *sale.Payment
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if p, err = tx.GetPayment(ctx, paymentID); err != nil {
			return err
		}
		if p.Cancelled {
			return ErrPaymentCancelled
		}
		if _, err := lockSale(ctx, tx, p.SaleID); err != nil {
			return err
		}

		now := l.clock()
		p.Cancelled = true
		p.CancelledAt = &now
		return tx.UpdatePayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("payment cancelled",
		"payment_id", p.ID.String(),
		"sale_id", p.SaleID.String(),
		"amount", p.Amount.String(),
	)
	l.plugins.EmitPaymentCancelled(ctx, p)
	return p, nil
}

// ListPayments returns every payment of a sale, cancelled ones included,
// ordered by installment.
func (l *Ledger) ListPayments(ctx context.Context, saleID id.SaleID) ([]sale.Payment, error) {
	if _, err := l.store.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	payments, err := l.store.ListPayments(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return deref(payments), nil
}
