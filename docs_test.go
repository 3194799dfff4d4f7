package cahiers_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/store/memory"
	"github.com/xraph/cahiers/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for demo, use gormstore in production
		store := memory.New()

		l := cahiers.New(store,
			cahiers.WithLogger(slog.Default()),
			cahiers.WithCurrency("xof"),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		it, err := l.CreateItem(ctx, cahiers.ItemInput{
			Title:         "Cahier 100 pages",
			UnitPrice:     types.XOF(250),
			StockQuantity: 500,
		})
		if err != nil {
			t.Fatal(err)
		}

		sc, err := l.CreateSchool(ctx, cahiers.SchoolInput{Name: "École Sainte Marie"})
		if err != nil {
			t.Fatal(err)
		}

		s, err := l.CreateSale(ctx, cahiers.CreateSaleInput{
			SchoolID: sc.ID,
			Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 40}},
		})
		if err != nil {
			t.Fatal(err)
		}

		receipt, err := l.RecordPayment(ctx, s.ID, types.XOF(15000), cahiers.PaymentOpts{})
		if err != nil {
			t.Fatal(err)
		}

		if !receipt.Applied.Equal(types.XOF(10000)) {
			t.Errorf("Applied: got %v, want 10000 F", receipt.Applied)
		}
		if !receipt.Change.Equal(types.XOF(5000)) {
			t.Errorf("Change: got %v, want 5000 F", receipt.Change)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		m1 := cahiers.XOF(100)
		m2 := cahiers.XOF(200)

		if got := m1.Add(m2); !got.Equal(cahiers.XOF(300)) {
			t.Errorf("Add: got %v", got)
		}
		if got := m1.Multiply(3); !got.Equal(cahiers.XOF(300)) {
			t.Errorf("Multiply: got %v", got)
		}
		if !m1.LessThan(m2) {
			t.Error("LessThan: expected 100 < 200")
		}
		if got := m1.String(); got != "100 F" {
			t.Errorf("String: got %q, want %q", got, "100 F")
		}
	})
}
