package gormstore_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/store/gormstore"
	"github.com/xraph/cahiers/types"
)

func openStore(t *testing.T) *gormstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := gormstore.Open(gormstore.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

var t0 = time.Date(2024, time.October, 15, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *gormstore.Store) (*schoolyear.SchoolYear, *school.School, *item.Item) {
	t.Helper()
	ctx := context.Background()

	y := schoolyear.New(2024)
	y.Entity = types.NewEntityAt(t0)
	if err := s.CreateSchoolYear(ctx, y); err != nil {
		t.Fatalf("CreateSchoolYear: %v", err)
	}
	sc := &school.School{Entity: types.NewEntityAt(t0), ID: id.NewSchoolID(), Name: "Lycée Moderne"}
	if err := s.CreateSchool(ctx, sc); err != nil {
		t.Fatalf("CreateSchool: %v", err)
	}
	it := &item.Item{Entity: types.NewEntityAt(t0), ID: id.NewItemID(), Title: "Cahier 100p", UnitPrice: types.XOF(250), StockQuantity: 40}
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return y, sc, it
}

func newSale(t *testing.T, s store.Store, y *schoolyear.SchoolYear, sc *school.School, it *item.Item, qty int64) *sale.Sale {
	t.Helper()
	ctx := context.Background()
	sl := &sale.Sale{
		Entity:       types.NewEntityAt(t0),
		ID:           id.NewSaleID(),
		SchoolID:     sc.ID,
		SchoolYearID: y.ID,
		DueDate:      t0.Add(30 * 24 * time.Hour),
	}
	if err := s.CreateSale(ctx, sl); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	line := &sale.LineItem{ID: id.NewLineItemID(), SaleID: sl.ID, ItemID: it.ID, ItemTitle: it.Title, AddedAt: t0}
	line.Reprice(qty, it.UnitPrice)
	if err := s.CreateLineItems(ctx, []*sale.LineItem{line}); err != nil {
		t.Fatalf("CreateLineItems: %v", err)
	}
	return sl
}

func TestRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	y, sc, it := seed(t, s)
	sl := newSale(t, s, y, sc, it, 4)

	gotItem, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !gotItem.UnitPrice.Equal(types.XOF(250)) || gotItem.UnitPrice.Currency != "xof" {
		t.Errorf("UnitPrice: got %v, want 250 F", gotItem.UnitPrice)
	}

	gotSale, err := s.GetSale(ctx, sl.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if gotSale.SchoolID != sc.ID || gotSale.SchoolYearID != y.ID {
		t.Errorf("GetSale: got school %s year %s", gotSale.SchoolID, gotSale.SchoolYearID)
	}
	if !gotSale.DueDate.Equal(sl.DueDate) {
		t.Errorf("DueDate: got %v, want %v", gotSale.DueDate, sl.DueDate)
	}

	lines, err := s.ListLineItems(ctx, sl.ID)
	if err != nil {
		t.Fatalf("ListLineItems: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 4 || !lines[0].Amount.Equal(types.XOF(1000)) {
		t.Errorf("lines: got %+v", lines)
	}

	for i := 1; i <= 2; i++ {
		p := &sale.Payment{ID: id.NewPaymentID(), SaleID: sl.ID, Amount: types.XOF(300), Installment: 3 - i, PaidAt: t0}
		if err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
	}
	payments, err := s.ListPayments(ctx, sl.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 2 || payments[0].Installment != 1 || payments[1].Installment != 2 {
		t.Errorf("payments should be ordered by installment: got %+v", payments)
	}
}

func TestNotFound(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"school year", func() error { _, err := s.GetSchoolYear(ctx, id.NewSchoolYearID()); return err }, cahiers.ErrSchoolYearNotFound},
		{"active year", func() error { _, err := s.GetActiveSchoolYear(ctx); return err }, cahiers.ErrNoActiveSchoolYear},
		{"school", func() error { _, err := s.GetSchool(ctx, id.NewSchoolID()); return err }, cahiers.ErrSchoolNotFound},
		{"item", func() error { _, err := s.GetItem(ctx, id.NewItemID()); return err }, cahiers.ErrItemNotFound},
		{"lock items", func() error { _, err := s.LockItems(ctx, []id.ItemID{id.NewItemID()}); return err }, cahiers.ErrItemNotFound},
		{"adjust stock", func() error { return s.AdjustStock(ctx, id.NewItemID(), 1) }, cahiers.ErrItemNotFound},
		{"sale", func() error { _, err := s.GetSale(ctx, id.NewSaleID()); return err }, cahiers.ErrSaleNotFound},
		{"delete sale", func() error { return s.DeleteSale(ctx, id.NewSaleID()) }, cahiers.ErrSaleNotFound},
		{"line item", func() error { return s.DeleteLineItem(ctx, id.NewLineItemID()) }, cahiers.ErrLineItemNotFound},
		{"payment", func() error { _, err := s.GetPayment(ctx, id.NewPaymentID()); return err }, cahiers.ErrPaymentNotFound},
		{"update school", func() error {
			return s.UpdateSchool(ctx, &school.School{ID: id.NewSchoolID(), Name: "x"})
		}, cahiers.ErrSchoolNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWithTxRollback(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, _, it := seed(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.AdjustStock(ctx, it.ID, -15); err != nil {
			return err
		}
		locked, err := tx.LockItems(ctx, []id.ItemID{it.ID})
		if err != nil {
			return err
		}
		if locked[it.ID].StockQuantity != 25 {
			t.Errorf("stock inside tx: got %d, want 25", locked[it.ID].StockQuantity)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx: got %v, want boom", err)
	}

	got, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.StockQuantity != 40 {
		t.Errorf("stock after rollback: got %d, want 40", got.StockQuantity)
	}
}

func TestSchoolYears(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	y, _, _ := seed(t, s)

	if err := s.CreateSchoolYear(ctx, schoolyear.New(2024)); !errors.Is(err, cahiers.ErrSchoolYearExists) {
		t.Errorf("duplicate start year: got %v", err)
	}
	next := schoolyear.New(2025)
	if err := s.CreateSchoolYear(ctx, next); err != nil {
		t.Fatalf("CreateSchoolYear: %v", err)
	}

	for _, target := range []*schoolyear.SchoolYear{y, next} {
		if err := s.ActivateSchoolYear(ctx, target.ID); err != nil {
			t.Fatalf("ActivateSchoolYear: %v", err)
		}
		active, err := s.GetActiveSchoolYear(ctx)
		if err != nil {
			t.Fatalf("GetActiveSchoolYear: %v", err)
		}
		if active.ID != target.ID {
			t.Errorf("active: got %s, want %s", active.Label(), target.Label())
		}
	}

	years, err := s.ListSchoolYears(ctx)
	if err != nil {
		t.Fatalf("ListSchoolYears: %v", err)
	}
	if len(years) != 2 || years[0].StartYear != 2025 || years[1].IsActive {
		t.Errorf("ListSchoolYears: got %+v", years)
	}
}

func TestListFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	y, sc, it := seed(t, s)

	low := &item.Item{Entity: types.NewEntityAt(t0), ID: id.NewItemID(), Title: "Cahier 200p", UnitPrice: types.XOF(400), StockQuantity: 5}
	if err := s.CreateItem(ctx, low); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	items, err := s.ListItems(ctx, item.ListOpts{BelowStock: 10})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != low.ID {
		t.Errorf("BelowStock: got %d items", len(items))
	}
	items, err = s.ListItems(ctx, item.ListOpts{Search: "CAHIER", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != low.ID {
		t.Errorf("paging: got %+v", items)
	}

	schools, err := s.ListSchools(ctx, school.ListOpts{Search: "moderne"})
	if err != nil || len(schools) != 1 {
		t.Errorf("ListSchools: got %d, %v", len(schools), err)
	}

	first := newSale(t, s, y, sc, it, 1)
	later := newSale(t, s, y, sc, it, 1)
	later.DueDate = t0.Add(90 * 24 * time.Hour)
	if err := s.UpdateSale(ctx, later); err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}

	cutoff := t0.Add(60 * 24 * time.Hour)
	due, err := s.ListSales(ctx, sale.ListOpts{SchoolID: sc.ID, DueBefore: &cutoff})
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(due) != 1 || due[0].ID != first.ID {
		t.Errorf("DueBefore: got %d sales", len(due))
	}

	locked, err := s.LockSchoolSales(ctx, sc.ID)
	if err != nil || len(locked) != 2 {
		t.Errorf("LockSchoolSales: got %d, %v", len(locked), err)
	}
}

func TestDeleteSaleCascades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	y, sc, it := seed(t, s)
	sl := newSale(t, s, y, sc, it, 2)
	if err := s.CreatePayment(ctx, &sale.Payment{ID: id.NewPaymentID(), SaleID: sl.ID, Amount: types.XOF(100), Installment: 1, PaidAt: t0}); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if err := s.DeleteSale(ctx, sl.ID); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}

	lines, _ := s.ListLineItems(ctx, sl.ID)
	payments, _ := s.ListPayments(ctx, sl.ID)
	if len(lines) != 0 || len(payments) != 0 {
		t.Errorf("children left: %d lines, %d payments", len(lines), len(payments))
	}

	orphan := &sale.LineItem{ID: id.NewLineItemID(), SaleID: sl.ID, ItemID: it.ID, AddedAt: t0}
	if err := s.CreateLineItems(ctx, []*sale.LineItem{orphan}); !errors.Is(err, cahiers.ErrSaleNotFound) {
		t.Errorf("line on deleted sale: got %v", err)
	}
}

func TestDeleteReferencedRows(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	y, sc, it := seed(t, s)
	sl := newSale(t, s, y, sc, it, 1)

	if err := s.DeleteSchool(ctx, sc.ID); !errors.Is(err, cahiers.ErrInUse) {
		t.Errorf("DeleteSchool with a sale: got %v, want ErrInUse", err)
	}
	if err := s.DeleteItem(ctx, it.ID); !errors.Is(err, cahiers.ErrInUse) {
		t.Errorf("DeleteItem on a line: got %v, want ErrInUse", err)
	}
	if _, err := s.GetSchool(ctx, sc.ID); err != nil {
		t.Fatalf("GetSchool after rejected delete: %v", err)
	}

	if err := s.DeleteSale(ctx, sl.ID); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}
	if err := s.DeleteSchool(ctx, sc.ID); err != nil {
		t.Errorf("DeleteSchool: %v", err)
	}
	if err := s.DeleteItem(ctx, it.ID); err != nil {
		t.Errorf("DeleteItem: %v", err)
	}
	if err := s.DeleteSchool(ctx, sc.ID); !errors.Is(err, cahiers.ErrSchoolNotFound) {
		t.Errorf("second DeleteSchool: got %v, want ErrSchoolNotFound", err)
	}
	if _, err := s.GetItem(ctx, it.ID); !errors.Is(err, cahiers.ErrItemNotFound) {
		t.Errorf("GetItem after delete: got %v, want ErrItemNotFound", err)
	}
}

func TestLedgerOnSQLite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.October, 15, 9, 0, 0, 0, time.UTC)

	l := cahiers.New(s,
		cahiers.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cahiers.WithClock(func() time.Time { return now }),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sc, err := l.CreateSchool(ctx, cahiers.SchoolInput{Name: "EPP Cocody"})
	if err != nil {
		t.Fatalf("CreateSchool: %v", err)
	}
	it, err := l.CreateItem(ctx, cahiers.ItemInput{Title: "Cahier 48p", UnitPrice: types.XOF(150), StockQuantity: 100})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	sl, err := l.CreateSale(ctx, cahiers.CreateSaleInput{
		SchoolID: sc.ID,
		Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 20}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	receipt, err := l.RecordPayment(ctx, sl.ID, types.XOF(3500), cahiers.PaymentOpts{})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if !receipt.Applied.Equal(types.XOF(3000)) || !receipt.Change.Equal(types.XOF(500)) {
		t.Errorf("receipt: applied %v change %v", receipt.Applied, receipt.Change)
	}

	got, err := l.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.StockQuantity != 80 {
		t.Errorf("stock: got %d, want 80", got.StockQuantity)
	}

	bal, err := l.Balance(ctx, sl.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Remaining.IsZero() {
		t.Errorf("remaining: got %v, want 0", bal.Remaining)
	}
}
