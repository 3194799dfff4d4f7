package mongo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/types"
)

func TestMoneyModel(t *testing.T) {
	tests := []types.Money{
		types.XOF(1500),
		types.MustParse("12.35", "eur"),
		types.XOF(0),
	}

	for _, want := range tests {
		t.Run(want.String(), func(t *testing.T) {
			m, err := toMoneyModel(want)
			if err != nil {
				t.Fatalf("toMoneyModel: %v", err)
			}
			got, err := fromMoneyModel(m)
			if err != nil {
				t.Fatalf("fromMoneyModel: %v", err)
			}
			if !got.Equal(want) || got.Currency != want.Currency {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestContainsEscapesPattern(t *testing.T) {
	got := contains("Cahier (100p)")
	if got["$regex"] != `Cahier \(100p\)` {
		t.Errorf("regex: got %v", got["$regex"])
	}
	if got["$options"] != "i" {
		t.Errorf("options: got %v", got["$options"])
	}
}

// TestLedgerOnMongo runs against a live replica set named by
// CAHIERS_MONGO_URI.
func TestLedgerOnMongo(t *testing.T) {
	uri := os.Getenv("CAHIERS_MONGO_URI")
	if uri == "" {
		t.Skip("CAHIERS_MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := Open(uri, "cahiers_test_"+time.Now().Format("20060102150405"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Database().Drop(context.Background())
		_ = s.Close()
	})

	l := cahiers.New(s, cahiers.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sc, err := l.CreateSchool(ctx, cahiers.SchoolInput{Name: "Collège Plateau"})
	if err != nil {
		t.Fatalf("CreateSchool: %v", err)
	}
	it, err := l.CreateItem(ctx, cahiers.ItemInput{Title: "Cahier 96p", UnitPrice: types.XOF(200), StockQuantity: 10})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	_, err = l.CreateSale(ctx, cahiers.CreateSaleInput{
		SchoolID: sc.ID,
		Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 11}},
	})
	if !errors.Is(err, cahiers.ErrInsufficientStock) {
		t.Fatalf("CreateSale: got %v, want insufficient stock", err)
	}

	if _, err := s.GetItem(ctx, id.NewItemID()); !errors.Is(err, cahiers.ErrItemNotFound) {
		t.Errorf("GetItem: got %v", err)
	}
	low, err := s.ListItems(ctx, item.ListOpts{BelowStock: 20})
	if err != nil || len(low) != 1 {
		t.Errorf("ListItems: got %d, %v", len(low), err)
	}

	sl, err := l.CreateSale(ctx, cahiers.CreateSaleInput{
		SchoolID: sc.ID,
		Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if err := l.DeleteItem(ctx, it.ID); !errors.Is(err, cahiers.ErrInUse) {
		t.Errorf("DeleteItem on a line: got %v, want ErrInUse", err)
	}
	if err := l.DeleteSale(ctx, sl.ID); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}
	if err := l.DeleteSchool(ctx, sc.ID); err != nil {
		t.Errorf("DeleteSchool: %v", err)
	}
	if err := l.DeleteSchool(ctx, sc.ID); !errors.Is(err, cahiers.ErrSchoolNotFound) {
		t.Errorf("second DeleteSchool: got %v, want ErrSchoolNotFound", err)
	}
}
