package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/httpapi"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/report"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/store/memory"
	"github.com/xraph/cahiers/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t      *testing.T
	router http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	now := time.Date(2024, time.October, 15, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l := cahiers.New(memory.New(),
		cahiers.WithLogger(logger),
		cahiers.WithClock(clock),
		cahiers.WithPlugin(report.NewInvoiceRenderer()),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := httpapi.New(l, httpapi.WithLogger(logger), httpapi.WithClock(clock))
	return &server{t: t, router: h.Router()}
}

func (s *server) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/cahiers"+path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

type saleResponse struct {
	ID      id.SaleID         `json:"id"`
	Lines   []sale.LineItem   `json:"lines"`
	Balance reconcile.Balance `json:"balance"`
	Status  sale.Status       `json:"status"`
}

// seed creates one school and one item priced 400 with 50 in stock.
func (s *server) seed() (*school.School, *item.Item) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/schools", map[string]any{"name": "Lycée Moderne"})
	expectStatus(s.t, w, http.StatusCreated)
	sc := decode[school.School](s.t, w)

	w = s.do(http.MethodPost, "/items", map[string]any{
		"title":          "Cahier 100 pages",
		"unit_price":     400,
		"currency":       "xof",
		"stock_quantity": 50,
	})
	expectStatus(s.t, w, http.StatusCreated)
	it := decode[item.Item](s.t, w)
	return &sc, &it
}

func (s *server) sale(sc *school.School, it *item.Item, qty int64) saleResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/sales", map[string]any{
		"school_id":  sc.ID,
		"item_ids":   []id.ID{it.ID},
		"quantities": []int64{qty},
	})
	expectStatus(s.t, w, http.StatusCreated)
	return decode[saleResponse](s.t, w)
}

func TestCreateAndGetSale(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()

	created := s.sale(sc, it, 5)
	if !created.Balance.Total.Equal(types.XOF(2000)) {
		t.Errorf("Total: got %v, want 2000", created.Balance.Total)
	}
	if created.Status != sale.StatusInProgress {
		t.Errorf("Status: got %s, want %s", created.Status, sale.StatusInProgress)
	}

	w := s.do(http.MethodGet, "/sales/"+created.ID.String(), nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[saleResponse](t, w)
	if got.ID != created.ID {
		t.Errorf("ID: got %s, want %s", got.ID, created.ID)
	}
	if len(got.Lines) != 1 || got.Lines[0].Quantity != 5 {
		t.Errorf("Lines: got %+v, want one line of 5", got.Lines)
	}

	w = s.do(http.MethodGet, "/items/"+it.ID.String(), nil)
	expectStatus(t, w, http.StatusOK)
	if stocked := decode[item.Item](t, w); stocked.StockQuantity != 45 {
		t.Errorf("Stock: got %d, want 45", stocked.StockQuantity)
	}
}

func TestRecordPayment(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()
	created := s.sale(sc, it, 5)

	w := s.do(http.MethodPost, "/sales/"+created.ID.String()+"/payments", map[string]any{
		"amount":   2500,
		"currency": "xof",
	})
	expectStatus(t, w, http.StatusCreated)
	receipt := decode[cahiers.PaymentReceipt](t, w)
	if !receipt.Applied.Equal(types.XOF(2000)) {
		t.Errorf("Applied: got %v, want 2000", receipt.Applied)
	}
	if !receipt.Change.Equal(types.XOF(500)) {
		t.Errorf("Change: got %v, want 500", receipt.Change)
	}
	if len(receipt.Payments) != 1 || receipt.Payments[0].Installment != 1 {
		t.Errorf("Payments: got %+v, want installment 1", receipt.Payments)
	}

	w = s.do(http.MethodGet, "/sales/"+created.ID.String(), nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[saleResponse](t, w); got.Status != sale.StatusSettled {
		t.Errorf("Status: got %s, want %s", got.Status, sale.StatusSettled)
	}

	w = s.do(http.MethodPost, "/sales/"+created.ID.String()+"/payments", map[string]any{"amount": 100})
	expectStatus(t, w, http.StatusConflict)

	paymentID := receipt.Payments[0].ID.String()
	w = s.do(http.MethodPost, "/payments/"+paymentID+"/cancel", nil)
	expectStatus(t, w, http.StatusOK)
	if p := decode[sale.Payment](t, w); !p.Cancelled {
		t.Error("Cancelled: got false, want true")
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()
	created := s.sale(sc, it, 5)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/schools", "{", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/schools", map[string]any{"name": ""}, http.StatusUnprocessableEntity},
		{"malformed id", http.MethodGet, "/sales/bogus", nil, http.StatusUnprocessableEntity},
		{"wrong prefix", http.MethodGet, "/sales/" + sc.ID.String(), nil, http.StatusUnprocessableEntity},
		{"unknown sale", http.MethodGet, "/sales/" + id.NewSaleID().String(), nil, http.StatusNotFound},
		{"unknown school", http.MethodGet, "/schools/" + id.NewSchoolID().String(), nil, http.StatusNotFound},
		{"negative quantity", http.MethodPatch, "/sales/" + created.ID.String() + "/lines/" + created.Lines[0].ID.String(),
			map[string]any{"quantity": -1}, http.StatusUnprocessableEntity},
		{"zero quantity on last line", http.MethodPatch, "/sales/" + created.ID.String() + "/lines/" + created.Lines[0].ID.String(),
			map[string]any{"quantity": 0}, http.StatusConflict},
		{"last line", http.MethodDelete, "/sales/" + created.ID.String() + "/lines/" + created.Lines[0].ID.String(),
			nil, http.StatusConflict},
		{"bad limit", http.MethodGet, "/sales?limit=-1", nil, http.StatusUnprocessableEntity},
		{"foreign price currency", http.MethodPost, "/items",
			map[string]any{"title": "Cahier 48p", "unit_price": 2, "currency": "eur"}, http.StatusUnprocessableEntity},
		{"foreign price on update", http.MethodPut, "/items/" + it.ID.String(),
			map[string]any{"title": it.Title, "unit_price": 2, "currency": "eur"}, http.StatusUnprocessableEntity},
		{"referenced school", http.MethodDelete, "/schools/" + sc.ID.String(), nil, http.StatusConflict},
		{"referenced item", http.MethodDelete, "/items/" + it.ID.String(), nil, http.StatusConflict},
		{"unknown item delete", http.MethodDelete, "/items/" + id.NewItemID().String(), nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDeleteCatalogEntries(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()

	w := s.do(http.MethodDelete, "/schools/"+sc.ID.String(), nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(http.MethodGet, "/schools/"+sc.ID.String(), nil)
	expectStatus(t, w, http.StatusNotFound)

	w = s.do(http.MethodDelete, "/items/"+it.ID.String(), nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(http.MethodGet, "/items/"+it.ID.String(), nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestInsufficientStock(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()

	w := s.do(http.MethodPost, "/sales", map[string]any{
		"school_id": sc.ID,
		"lines":     []map[string]any{{"item_id": it.ID, "quantity": 80}},
	})
	expectStatus(t, w, http.StatusUnprocessableEntity)

	body := decode[struct {
		Shortages []cahiers.StockShortage `json:"shortages"`
	}](t, w)
	if len(body.Shortages) != 1 {
		t.Fatalf("Shortages: got %d, want 1", len(body.Shortages))
	}
	if got := body.Shortages[0]; got.Available != 50 || got.Requested != 80 {
		t.Errorf("Shortage: got %+v, want available 50 requested 80", got)
	}
}

func TestLineEdits(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()
	created := s.sale(sc, it, 5)
	path := "/sales/" + created.ID.String() + "/lines"

	w := s.do(http.MethodPost, path, map[string]any{
		"lines": []map[string]any{{"item_id": it.ID, "quantity": 2}},
	})
	expectStatus(t, w, http.StatusOK)
	if got := decode[saleResponse](t, w); !got.Balance.Total.Equal(types.XOF(2800)) {
		t.Errorf("Total after add: got %v, want 2800", got.Balance.Total)
	}

	w = s.do(http.MethodPatch, path+"/"+created.Lines[0].ID.String(), map[string]any{"quantity": 1})
	expectStatus(t, w, http.StatusOK)
	if got := decode[saleResponse](t, w); !got.Balance.Total.Equal(types.XOF(1200)) {
		t.Errorf("Total after update: got %v, want 1200", got.Balance.Total)
	}

	w = s.do(http.MethodPut, path, map[string]any{
		"item_ids":   []id.ID{it.ID},
		"quantities": []int64{10},
	})
	expectStatus(t, w, http.StatusOK)
	got := decode[saleResponse](t, w)
	if len(got.Lines) != 1 || !got.Balance.Total.Equal(types.XOF(4000)) {
		t.Errorf("Replace: got %d lines total %v, want 1 line total 4000", len(got.Lines), got.Balance.Total)
	}

	w = s.do(http.MethodPut, path, map[string]any{
		"item_ids":   []id.ID{it.ID},
		"quantities": []int64{1, 2},
	})
	expectStatus(t, w, http.StatusUnprocessableEntity)
}

func TestInvoiceEndpoints(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()
	created := s.sale(sc, it, 5)

	w := s.do(http.MethodGet, "/sales/"+created.ID.String()+"/invoice", nil)
	expectStatus(t, w, http.StatusOK)
	snap := decode[struct {
		Number  string            `json:"number"`
		Balance reconcile.Balance `json:"balance"`
	}](t, w)
	if snap.Number == "" {
		t.Error("Number: got empty, want invoice number")
	}
	if !snap.Balance.Remaining.Equal(types.XOF(2000)) {
		t.Errorf("Remaining: got %v, want 2000", snap.Balance.Remaining)
	}

	w = s.do(http.MethodGet, "/sales/"+created.ID.String()+"/invoice.xlsx", nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != report.ContentType {
		t.Errorf("Content-Type: got %s, want %s", ct, report.ContentType)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("Content-Disposition: got %s", cd)
	}
	if w.Body.Len() == 0 {
		t.Error("Body: got empty workbook")
	}
}

func TestDebtAndDueListings(t *testing.T) {
	s := newServer(t)
	sc, it := s.seed()
	first := s.sale(sc, it, 5)
	second := s.sale(sc, it, 2)

	w := s.do(http.MethodGet, "/schools/"+sc.ID.String()+"/debt?exclude_sale_id="+second.ID.String(), nil)
	expectStatus(t, w, http.StatusOK)
	debt := decode[reconcile.DebtSummary](t, w)
	if !debt.Total.Equal(types.XOF(2000)) {
		t.Errorf("Debt: got %v, want 2000", debt.Total)
	}

	w = s.do(http.MethodGet, "/sales?school_id="+sc.ID.String(), nil)
	expectStatus(t, w, http.StatusOK)
	if listed := decode[[]saleResponse](t, w); len(listed) != 2 {
		t.Errorf("List: got %d sales, want 2", len(listed))
	}

	w = s.do(http.MethodGet, "/sales/overdue", nil)
	expectStatus(t, w, http.StatusOK)
	if overdue := decode[[]cahiers.DueSale](t, w); len(overdue) != 0 {
		t.Errorf("Overdue: got %d, want 0", len(overdue))
	}

	w = s.do(http.MethodDelete, "/sales/"+first.ID.String(), nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(http.MethodGet, "/sales/"+first.ID.String(), nil)
	expectStatus(t, w, http.StatusNotFound)
}
