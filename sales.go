package cahiers

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/types"
)

// ──────────────────────────────────────────────────
// Sale lifecycle
// ──────────────────────────────────────────────────

// CreateSale records a sale for a school. Every line is checked against
// stock before anything is written; when some items are short the call
// fails with an *InsufficientStockError naming all of them. Without a
// school year the current one is used, opened on demand.
func (l *Ledger) CreateSale(ctx context.Context, in CreateSaleInput) (*sale.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var initialAmount types.Money
	if in.InitialPayment != nil {
		var err error
		if initialAmount, err = l.ledgerMoney("initial_payment", *in.InitialPayment); err != nil {
			return nil, err
		}
	}

	now := l.clock()
	due := now.Add(l.paymentTerm)
	if in.DueDate != nil && !in.DueDate.IsZero() {
		due = in.DueDate.UTC()
	}

	var (
		s           *sale.Sale
		stock       *stockLedger
		year        *schoolyear.SchoolYear
		yearCreated bool
		initial     *sale.Payment
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetSchool(ctx, in.SchoolID); err != nil {
			return err
		}

		var err error
		if in.SchoolYearID.IsNil() {
			year, yearCreated, err = l.ensureCurrentYear(ctx, tx)
		} else {
			year, err = tx.GetSchoolYear(ctx, in.SchoolYearID)
		}
		if err != nil {
			return err
		}

		items, err := tx.LockItems(ctx, lineItemIDs(in.Lines))
		if err != nil {
			return err
		}
		stock = newStockLedger(items)
		if err := stock.reserve(in.Lines); err != nil {
			return err
		}

		s = &sale.Sale{
			Entity:       types.NewEntityAt(now),
			ID:           id.NewSaleID(),
			SchoolID:     in.SchoolID,
			SchoolYearID: year.ID,
			DueDate:      due,
		}
		if err := tx.CreateSale(ctx, s); err != nil {
			return err
		}

		lines := newLines(s.ID, in.Lines, items, now)
		if err := tx.CreateLineItems(ctx, lines); err != nil {
			return err
		}
		if err := stock.apply(ctx, tx); err != nil {
			return err
		}
		s.Lines = deref(lines)

		if initialAmount.IsPositive() {
			initial = &sale.Payment{
				ID:          id.NewPaymentID(),
				SaleID:      s.ID,
				Amount:      initialAmount.Min(reconcile.Total(s.Lines)),
				Installment: 1,
				PaidAt:      now,
			}
			if err := tx.CreatePayment(ctx, initial); err != nil {
				return err
			}
			s.Payments = []sale.Payment{*initial}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bal := reconcile.BalanceOf(s)
	l.logger.Info("sale created",
		"sale_id", s.ID.String(),
		"school_id", s.SchoolID.String(),
		"school_year", year.Label(),
		"lines", len(s.Lines),
		"total", bal.Total.String(),
	)

	if yearCreated {
		l.plugins.EmitSchoolYearCreated(ctx, year)
		l.plugins.EmitSchoolYearActivated(ctx, year)
	}
	l.plugins.EmitSaleCreated(ctx, s)
	l.emitStock(ctx, stock)
	if initial != nil {
		l.plugins.EmitPaymentRecorded(ctx, initial)
		if bal.Settled() {
			l.plugins.EmitSaleSettled(ctx, s.ID)
		}
	}
	return s, nil
}

// GetSale returns a sale with its lines and payments.
func (l *Ledger) GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	s, err := l.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := hydrate(ctx, l.store, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSales returns hydrated sales, oldest first.
func (l *Ledger) ListSales(ctx context.Context, opts sale.ListOpts) ([]*sale.Sale, error) {
	sales, err := l.store.ListSales(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := hydrateAll(ctx, l.store, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// DeleteSale removes a sale with its lines and payments and puts the sold
// quantities back in stock.
func (l *Ledger) DeleteSale(ctx context.Context, saleID id.SaleID) error {
	var stock *stockLedger
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := lockSale(ctx, tx, saleID); err != nil {
			return err
		}
		lines, err := tx.ListLineItems(ctx, saleID)
		if err != nil {
			return err
		}
		if stock, err = restoreLines(ctx, tx, lines, nil); err != nil {
			return err
		}
		if err := tx.DeleteSale(ctx, saleID); err != nil {
			return err
		}
		return stock.apply(ctx, tx)
	})
	if err != nil {
		return err
	}

	l.logger.Info("sale deleted", "sale_id", saleID.String())
	l.plugins.EmitSaleDeleted(ctx, saleID)
	l.emitStock(ctx, stock)
	return nil
}

// ──────────────────────────────────────────────────
// Line modifications
// ──────────────────────────────────────────────────

// AddLineItems appends lines to an existing sale. The new lines share the
// current timestamp and so form a new delivery session on the invoice.
func (l *Ledger) AddLineItems(ctx context.Context, saleID id.SaleID, lines []LineInput) (*sale.Sale, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	now := l.clock()
	return l.modify(ctx, saleID, sale.ModificationAdd, func(ctx context.Context, tx store.Store, s *sale.Sale) (*stockLedger, error) {
		items, err := tx.LockItems(ctx, lineItemIDs(lines))
		if err != nil {
			return nil, err
		}
		stock := newStockLedger(items)
		if err := stock.reserve(lines); err != nil {
			return nil, err
		}
		if err := tx.CreateLineItems(ctx, newLines(s.ID, lines, items, now)); err != nil {
			return nil, err
		}
		return stock, stock.apply(ctx, tx)
	})
}

// UpdateLineQuantity sets the quantity of one line and reprices it at the
// item's current price. Quantity must be positive: zero on the only line of
// a sale yields ErrLastLineItem, zero elsewhere is a validation error. Use
// RemoveLineItem to drop a line.
func (l *Ledger) UpdateLineQuantity(ctx context.Context, saleID id.SaleID, lineID id.LineItemID, quantity int64) (*sale.Sale, error) {
	if quantity < 0 {
		return nil, ValidationError{Field: "quantity", Message: "must not be negative"}
	}

	return l.modify(ctx, saleID, sale.ModificationQuantityChange, func(ctx context.Context, tx store.Store, s *sale.Sale) (*stockLedger, error) {
		line, err := saleLine(ctx, tx, saleID, lineID)
		if err != nil {
			return nil, err
		}
		if quantity == 0 {
			lines, err := tx.ListLineItems(ctx, saleID)
			if err != nil {
				return nil, err
			}
			if len(lines) <= 1 {
				return nil, ErrLastLineItem
			}
			return nil, ValidationError{Field: "quantity", Message: "must be greater than 0"}
		}
		items, err := tx.LockItems(ctx, []id.ItemID{line.ItemID})
		if err != nil {
			return nil, err
		}

		stock := newStockLedger(items)
		if delta := quantity - line.Quantity; delta > 0 {
			if err := stock.reserve([]LineInput{{ItemID: line.ItemID, Quantity: delta}}); err != nil {
				return nil, err
			}
		} else if delta < 0 {
			stock.move(line.ItemID, -delta)
		}

		line.Reprice(quantity, items[line.ItemID].UnitPrice)
		if err := tx.UpdateLineItem(ctx, line); err != nil {
			return nil, err
		}
		return stock, stock.apply(ctx, tx)
	})
}

// RemoveLineItem deletes one line and restores its quantity to stock.
// The last line of a sale cannot be removed; delete the sale instead.
func (l *Ledger) RemoveLineItem(ctx context.Context, saleID id.SaleID, lineID id.LineItemID) (*sale.Sale, error) {
	return l.modify(ctx, saleID, sale.ModificationLineRemoval, func(ctx context.Context, tx store.Store, s *sale.Sale) (*stockLedger, error) {
		line, err := saleLine(ctx, tx, saleID, lineID)
		if err != nil {
			return nil, err
		}
		lines, err := tx.ListLineItems(ctx, saleID)
		if err != nil {
			return nil, err
		}
		if len(lines) <= 1 {
			return nil, ErrLastLineItem
		}

		stock, err := restoreLines(ctx, tx, []*sale.LineItem{line}, nil)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteLineItem(ctx, lineID); err != nil {
			return nil, err
		}
		return stock, stock.apply(ctx, tx)
	})
}

// ReplaceLineItems swaps every line of a sale for a new set. The old
// quantities count as available while the new set is checked, so replacing
// a line with itself always succeeds. On failure the sale keeps its lines.
func (l *Ledger) ReplaceLineItems(ctx context.Context, saleID id.SaleID, lines []LineInput) (*sale.Sale, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	now := l.clock()
	return l.modify(ctx, saleID, sale.ModificationReplace, func(ctx context.Context, tx store.Store, s *sale.Sale) (*stockLedger, error) {
		existing, err := tx.ListLineItems(ctx, saleID)
		if err != nil {
			return nil, err
		}
		stock, err := restoreLines(ctx, tx, existing, lineItemIDs(lines))
		if err != nil {
			return nil, err
		}
		if err := stock.reserve(lines); err != nil {
			return nil, err
		}

		for _, old := range existing {
			if err := tx.DeleteLineItem(ctx, old.ID); err != nil {
				return nil, err
			}
		}
		if err := tx.CreateLineItems(ctx, newLines(s.ID, lines, stock.items, now)); err != nil {
			return nil, err
		}
		return stock, stock.apply(ctx, tx)
	})
}

// modify runs a line mutation in a transaction, stamps the sale with kind
// and reports the result once committed.
func (l *Ledger) modify(
	ctx context.Context,
	saleID id.SaleID,
	kind sale.ModificationKind,
	fn func(ctx context.Context, tx store.Store, s *sale.Sale) (*stockLedger, error),
) (*sale.Sale, error) {
	var (
		s     *sale.Sale
		stock *stockLedger
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if s, err = lockSale(ctx, tx, saleID); err != nil {
			return err
		}
		if stock, err = fn(ctx, tx, s); err != nil {
			return err
		}
		s.MarkModified(kind, l.clock())
		if err := tx.UpdateSale(ctx, s); err != nil {
			return err
		}
		return hydrate(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("sale modified",
		"sale_id", s.ID.String(),
		"kind", string(kind),
		"lines", len(s.Lines),
		"total", reconcile.Total(s.Lines).String(),
	)
	l.plugins.EmitSaleModified(ctx, s, kind)
	l.emitStock(ctx, stock)
	return s, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// lockSale loads a sale and locks every sale of its school, which
// serializes line changes with payments.
func lockSale(ctx context.Context, tx store.Store, saleID id.SaleID) (*sale.Sale, error) {
	s, err := tx.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	locked, err := tx.LockSchoolSales(ctx, s.SchoolID)
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(locked, func(x *sale.Sale) bool { return x.ID == saleID }); i >= 0 {
		return locked[i], nil
	}
	return nil, ErrSaleNotFound
}

// saleLine fetches a line and checks that it belongs to saleID.
func saleLine(ctx context.Context, tx store.Store, saleID id.SaleID, lineID id.LineItemID) (*sale.LineItem, error) {
	line, err := tx.GetLineItem(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.SaleID != saleID {
		return nil, ErrLineItemNotInSale
	}
	return line, nil
}

// restoreLines locks the items of lines plus extra and books the line
// quantities back into stock. Nothing is written until apply.
func restoreLines(ctx context.Context, tx store.Store, lines []*sale.LineItem, extra []id.ItemID) (*stockLedger, error) {
	ids := slices.Clone(extra)
	for _, ln := range lines {
		ids = append(ids, ln.ItemID)
	}
	if len(ids) == 0 {
		return newStockLedger(nil), nil
	}

	items, err := tx.LockItems(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	stock := newStockLedger(items)
	for _, ln := range lines {
		stock.move(ln.ItemID, ln.Quantity)
	}
	return stock, nil
}

func newLines(saleID id.SaleID, in []LineInput, items map[id.ItemID]*item.Item, at time.Time) []*sale.LineItem {
	out := make([]*sale.LineItem, 0, len(in))
	for _, li := range in {
		it := items[li.ItemID]
		ln := &sale.LineItem{
			ID:        id.NewLineItemID(),
			SaleID:    saleID,
			ItemID:    li.ItemID,
			ItemTitle: it.Title,
			AddedAt:   at,
		}
		ln.Reprice(li.Quantity, it.UnitPrice)
		out = append(out, ln)
	}
	return out
}

func lineItemIDs(lines []LineInput) []id.ItemID {
	ids := make([]id.ItemID, 0, len(lines))
	for _, li := range lines {
		ids = append(ids, li.ItemID)
	}
	return uniqueIDs(ids)
}

// uniqueIDs drops duplicates and sorts, so locks are always taken in the
// same order.
func uniqueIDs(ids []id.ID) []id.ID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b id.ID) int { return cmp.Compare(a.String(), b.String()) })
	return slices.CompactFunc(out, func(a, b id.ID) bool { return a == b })
}

// hydrate loads the lines and payments of a sale.
func hydrate(ctx context.Context, st store.Store, s *sale.Sale) error {
	return hydrateAll(ctx, st, []*sale.Sale{s})
}

func hydrateAll(ctx context.Context, st store.Store, sales []*sale.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]id.SaleID, len(sales))
	byID := make(map[id.SaleID]*sale.Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		s.Lines = s.Lines[:0]
		s.Payments = s.Payments[:0]
		byID[s.ID] = s
	}

	lines, err := st.ListLineItems(ctx, ids...)
	if err != nil {
		return err
	}
	for _, ln := range lines {
		if s, ok := byID[ln.SaleID]; ok {
			s.Lines = append(s.Lines, *ln)
		}
	}

	payments, err := st.ListPayments(ctx, ids...)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if s, ok := byID[p.SaleID]; ok {
			s.Payments = append(s.Payments, *p)
		}
	}
	return nil
}

func deref[T any](in []*T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = *v
	}
	return out
}

// ledgerMoney tags m with the ledger currency and rejects amounts in any
// other currency.
func (l *Ledger) ledgerMoney(field string, m types.Money) (types.Money, error) {
	m = l.money(m)
	if m.Currency != l.currency {
		return types.Money{}, ValidationError{Field: field, Message: "currency must be " + l.currency}
	}
	return m, nil
}
