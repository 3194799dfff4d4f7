package report_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/report"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/store/memory"
	"github.com/xraph/cahiers/types"
)

type env struct {
	ctx  context.Context
	l    *cahiers.Ledger
	sale *sale.Sale
}

// newEnv records a 2000 F sale with a 500 F payment made in the current
// school year.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, time.November, 4, 10, 0, 0, 0, time.UTC)

	l := cahiers.New(memory.New(),
		cahiers.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cahiers.WithClock(func() time.Time { return now }),
		cahiers.WithPlugin(report.NewInvoiceRenderer()),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sc, err := l.CreateSchool(ctx, cahiers.SchoolInput{Name: "EPP Yopougon", Representative: "M. Koné"})
	if err != nil {
		t.Fatalf("CreateSchool: %v", err)
	}
	it, err := l.CreateItem(ctx, cahiers.ItemInput{Title: "Cahier 200p", UnitPrice: types.XOF(400), StockQuantity: 50})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	s, err := l.CreateSale(ctx, cahiers.CreateSaleInput{
		SchoolID: sc.ID,
		Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := l.RecordPayment(ctx, s.ID, types.XOF(500), cahiers.PaymentOpts{}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	return &env{ctx: ctx, l: l, sale: s}
}

func rows(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheet, err)
	}
	return rows
}

// rowOf returns the raw cells of the first row whose first non-empty cell
// is label.
func rowOf(t *testing.T, f *excelize.File, sheet, label string) []string {
	t.Helper()
	for _, r := range rows(t, f, sheet) {
		for _, c := range r {
			if c == "" {
				continue
			}
			if c == label {
				return r
			}
			break
		}
	}
	t.Fatalf("no row labelled %q in %s", label, sheet)
	return nil
}

// rowWith returns the first row holding value in any cell.
func rowWith(t *testing.T, f *excelize.File, sheet, value string) []string {
	t.Helper()
	for _, r := range rows(t, f, sheet) {
		if slices.Contains(r, value) {
			return r
		}
	}
	t.Fatalf("no row with %q in %s", value, sheet)
	return nil
}

func TestRenderInvoiceXLSX(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	ct, err := e.l.RenderInvoice(e.ctx, e.sale.ID, "xlsx", &buf)
	if err != nil {
		t.Fatalf("RenderInvoice: %v", err)
	}
	if ct != report.ContentType {
		t.Errorf("content type: got %s", ct)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 1 || got[0] != report.InvoiceSheet {
		t.Errorf("sheets: got %v", got)
	}

	if line := rowWith(t, f, report.InvoiceSheet, "Cahier 200p"); line[2] != "5" || line[4] != "2000" {
		t.Errorf("line row: got %v", line)
	}

	tests := []struct {
		label string
		col   int
		want  string
	}{
		{"Total", 4, "2000"},
		{"Payé", 4, "500"},
		{"Reste à payer", 4, "1500"},
		{"Statut", 4, "En cours"},
		{"Versements restants", 1, "2"},
		{"Montant total dû", 4, "1500"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			row := rowOf(t, f, report.InvoiceSheet, tt.label)
			if len(row) <= tt.col || row[tt.col] != tt.want {
				t.Errorf("row %v: want %q in column %d", row, tt.want, tt.col)
			}
		})
	}
}

func TestStatementWorkbook(t *testing.T) {
	e := newEnv(t)

	stmt, err := e.l.SchoolStatement(e.ctx, e.sale.SchoolID, time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SchoolStatement: %v", err)
	}
	f, err := report.Statement(stmt)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	defer f.Close()

	row := rowWith(t, f, report.StatementSheet, "En retard")
	if row[3] != "2000" || row[5] != "1500" {
		t.Errorf("sale row: got %v", row)
	}
	total := rowOf(t, f, report.StatementSheet, "Total")
	if total[4] != "500" {
		t.Errorf("total paid: got %v", total)
	}
	overdue := rowOf(t, f, report.StatementSheet, "Ventes en retard")
	if overdue[1] != "1" {
		t.Errorf("overdue count: got %v", overdue)
	}
}

func TestYearComparisonWorkbook(t *testing.T) {
	e := newEnv(t)

	years, err := e.l.CompareYears(e.ctx, 3)
	if err != nil {
		t.Fatalf("CompareYears: %v", err)
	}
	f, err := report.YearComparison(years)
	if err != nil {
		t.Fatalf("YearComparison: %v", err)
	}

	var buf bytes.Buffer
	if err := report.Write(f, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer back.Close()

	row := rowOf(t, back, report.ComparisonSheet, "2024-2025")
	want := []string{"2024-2025", "2000", "500", "1500", "1", "1", "25"}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("column %d: got %q, want %q", i, row[i], w)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[sale.Status]string{
		sale.StatusSettled:    "Soldé",
		sale.StatusOverdue:    "En retard",
		sale.StatusInProgress: "En cours",
	}
	for status, want := range tests {
		if got := report.StatusLabel(status); got != want {
			t.Errorf("StatusLabel(%s): got %s, want %s", status, got, want)
		}
	}
}
