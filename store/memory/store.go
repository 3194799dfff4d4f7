// Package memory is an in-process Store for tests and demos.
//
// Records are kept by value so callers never alias stored state. WithTx
// serializes transactions and restores a snapshot of every table when the
// callback fails. Writes issued outside WithTx while a transaction is
// running are not isolated from its rollback.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type tables struct {
	years    map[id.SchoolYearID]schoolyear.SchoolYear
	schools  map[id.SchoolID]school.School
	items    map[id.ItemID]item.Item
	sales    map[id.SaleID]sale.Sale
	lines    map[id.LineItemID]sale.LineItem
	payments map[id.PaymentID]sale.Payment
}

func (t tables) clone() tables {
	return tables{
		years:    maps.Clone(t.years),
		schools:  maps.Clone(t.schools),
		items:    maps.Clone(t.items),
		sales:    maps.Clone(t.sales),
		lines:    maps.Clone(t.lines),
		payments: maps.Clone(t.payments),
	}
}

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	t    tables
}

// New returns an empty store.
func New() *Store {
	return &Store{t: tables{
		years:    make(map[id.SchoolYearID]schoolyear.SchoolYear),
		schools:  make(map[id.SchoolID]school.School),
		items:    make(map[id.ItemID]item.Item),
		sales:    make(map[id.SaleID]sale.Sale),
		lines:    make(map[id.LineItemID]sale.LineItem),
		payments: make(map[id.PaymentID]sale.Payment),
	}}
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// txStore is the handle passed to WithTx callbacks. Nested WithTx calls
// join the running transaction.
type txStore struct {
	*Store
}

func (t txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.t.clone()
	s.mu.RUnlock()

	if err := fn(ctx, txStore{s}); err != nil {
		s.mu.Lock()
		s.t = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ──────────────────────────────────────────────────
// School years
// ──────────────────────────────────────────────────

func (s *Store) CreateSchoolYear(_ context.Context, y *schoolyear.SchoolYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.years[y.ID]; exists {
		return cahiers.ErrAlreadyExists
	}
	for _, existing := range s.t.years {
		if existing.StartYear == y.StartYear {
			return cahiers.ErrSchoolYearExists
		}
	}
	s.t.years[y.ID] = *y
	return nil
}

func (s *Store) GetSchoolYear(_ context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if y, ok := s.t.years[yearID]; ok {
		return &y, nil
	}
	return nil, cahiers.ErrSchoolYearNotFound
}

func (s *Store) GetSchoolYearByStart(_ context.Context, startYear int) (*schoolyear.SchoolYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, y := range s.t.years {
		if y.StartYear == startYear {
			return &y, nil
		}
	}
	return nil, cahiers.ErrSchoolYearNotFound
}

func (s *Store) GetActiveSchoolYear(_ context.Context) (*schoolyear.SchoolYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, y := range s.t.years {
		if y.IsActive {
			return &y, nil
		}
	}
	return nil, cahiers.ErrNoActiveSchoolYear
}

func (s *Store) ListSchoolYears(_ context.Context) ([]*schoolyear.SchoolYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*schoolyear.SchoolYear, 0, len(s.t.years))
	for _, y := range s.t.years {
		result = append(result, &y)
	}
	slices.SortFunc(result, func(a, b *schoolyear.SchoolYear) int {
		return cmp.Compare(b.StartYear, a.StartYear)
	})
	return result, nil
}

func (s *Store) ActivateSchoolYear(_ context.Context, yearID id.SchoolYearID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.t.years[yearID]; !ok {
		return cahiers.ErrSchoolYearNotFound
	}
	for key, y := range s.t.years {
		active := key == yearID
		if y.IsActive != active {
			y.IsActive = active
			y.Touch()
			s.t.years[key] = y
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Schools
// ──────────────────────────────────────────────────

func (s *Store) CreateSchool(_ context.Context, sc *school.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.schools[sc.ID]; exists {
		return cahiers.ErrAlreadyExists
	}
	s.t.schools[sc.ID] = *sc
	return nil
}

func (s *Store) GetSchool(_ context.Context, schoolID id.SchoolID) (*school.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sc, ok := s.t.schools[schoolID]; ok {
		return &sc, nil
	}
	return nil, cahiers.ErrSchoolNotFound
}

func (s *Store) UpdateSchool(_ context.Context, sc *school.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.schools[sc.ID]; !exists {
		return cahiers.ErrSchoolNotFound
	}
	s.t.schools[sc.ID] = *sc
	return nil
}

func (s *Store) DeleteSchool(_ context.Context, schoolID id.SchoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.schools[schoolID]; !exists {
		return cahiers.ErrSchoolNotFound
	}
	for _, sl := range s.t.sales {
		if sl.SchoolID == schoolID {
			return cahiers.ErrInUse
		}
	}
	delete(s.t.schools, schoolID)
	return nil
}

func (s *Store) ListSchools(_ context.Context, opts school.ListOpts) ([]*school.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(opts.Search)
	result := make([]*school.School, 0)
	for _, sc := range s.t.schools {
		if needle == "" || strings.Contains(strings.ToLower(sc.Name), needle) {
			result = append(result, &sc)
		}
	}
	slices.SortFunc(result, func(a, b *school.School) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Items
// ──────────────────────────────────────────────────

func (s *Store) CreateItem(_ context.Context, it *item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.items[it.ID]; exists {
		return cahiers.ErrAlreadyExists
	}
	s.t.items[it.ID] = *it
	return nil
}

func (s *Store) GetItem(_ context.Context, itemID id.ItemID) (*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if it, ok := s.t.items[itemID]; ok {
		return &it, nil
	}
	return nil, cahiers.ErrItemNotFound
}

func (s *Store) UpdateItem(_ context.Context, it *item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.items[it.ID]; !exists {
		return cahiers.ErrItemNotFound
	}
	s.t.items[it.ID] = *it
	return nil
}

func (s *Store) DeleteItem(_ context.Context, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.items[itemID]; !exists {
		return cahiers.ErrItemNotFound
	}
	for _, l := range s.t.lines {
		if l.ItemID == itemID {
			return cahiers.ErrInUse
		}
	}
	delete(s.t.items, itemID)
	return nil
}

func (s *Store) ListItems(_ context.Context, opts item.ListOpts) ([]*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(opts.Search)
	result := make([]*item.Item, 0)
	for _, it := range s.t.items {
		if needle != "" && !strings.Contains(strings.ToLower(it.Title), needle) {
			continue
		}
		if opts.BelowStock > 0 && it.StockQuantity >= opts.BelowStock {
			continue
		}
		result = append(result, &it)
	}
	slices.SortFunc(result, func(a, b *item.Item) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) LockItems(_ context.Context, itemIDs []id.ItemID) (map[id.ItemID]*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[id.ItemID]*item.Item, len(itemIDs))
	for _, itemID := range itemIDs {
		it, ok := s.t.items[itemID]
		if !ok {
			return nil, cahiers.ErrItemNotFound
		}
		result[itemID] = &it
	}
	return result, nil
}

func (s *Store) AdjustStock(_ context.Context, itemID id.ItemID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.t.items[itemID]
	if !ok {
		return cahiers.ErrItemNotFound
	}
	it.StockQuantity += delta
	it.Touch()
	s.t.items[itemID] = it
	return nil
}

// ──────────────────────────────────────────────────
// Sales
// ──────────────────────────────────────────────────

func (s *Store) CreateSale(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.sales[sl.ID]; exists {
		return cahiers.ErrAlreadyExists
	}
	s.t.sales[sl.ID] = header(sl)
	return nil
}

func (s *Store) GetSale(_ context.Context, saleID id.SaleID) (*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sl, ok := s.t.sales[saleID]; ok {
		return &sl, nil
	}
	return nil, cahiers.ErrSaleNotFound
}

func (s *Store) UpdateSale(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.sales[sl.ID]; !exists {
		return cahiers.ErrSaleNotFound
	}
	s.t.sales[sl.ID] = header(sl)
	return nil
}

func (s *Store) DeleteSale(_ context.Context, saleID id.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.sales[saleID]; !exists {
		return cahiers.ErrSaleNotFound
	}
	delete(s.t.sales, saleID)
	maps.DeleteFunc(s.t.lines, func(_ id.LineItemID, l sale.LineItem) bool { return l.SaleID == saleID })
	maps.DeleteFunc(s.t.payments, func(_ id.PaymentID, p sale.Payment) bool { return p.SaleID == saleID })
	return nil
}

func (s *Store) ListSales(_ context.Context, opts sale.ListOpts) ([]*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*sale.Sale, 0)
	for _, sl := range s.t.sales {
		if !opts.SchoolID.IsNil() && sl.SchoolID != opts.SchoolID {
			continue
		}
		if !opts.SchoolYearID.IsNil() && sl.SchoolYearID != opts.SchoolYearID {
			continue
		}
		if opts.DueBefore != nil && !sl.DueDate.Before(*opts.DueBefore) {
			continue
		}
		result = append(result, &sl)
	}
	sortSales(result)
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) LockSchoolSales(ctx context.Context, schoolID id.SchoolID) ([]*sale.Sale, error) {
	return s.ListSales(ctx, sale.ListOpts{SchoolID: schoolID})
}

// ──────────────────────────────────────────────────
// Line items
// ──────────────────────────────────────────────────

func (s *Store) CreateLineItems(_ context.Context, lines []*sale.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lines {
		if _, exists := s.t.lines[l.ID]; exists {
			return cahiers.ErrAlreadyExists
		}
		if _, ok := s.t.sales[l.SaleID]; !ok {
			return cahiers.ErrSaleNotFound
		}
	}
	for _, l := range lines {
		s.t.lines[l.ID] = *l
	}
	return nil
}

func (s *Store) GetLineItem(_ context.Context, lineID id.LineItemID) (*sale.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.t.lines[lineID]; ok {
		return &l, nil
	}
	return nil, cahiers.ErrLineItemNotFound
}

func (s *Store) UpdateLineItem(_ context.Context, l *sale.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.lines[l.ID]; !exists {
		return cahiers.ErrLineItemNotFound
	}
	s.t.lines[l.ID] = *l
	return nil
}

func (s *Store) DeleteLineItem(_ context.Context, lineID id.LineItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.lines[lineID]; !exists {
		return cahiers.ErrLineItemNotFound
	}
	delete(s.t.lines, lineID)
	return nil
}

func (s *Store) ListLineItems(_ context.Context, saleIDs ...id.SaleID) ([]*sale.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*sale.LineItem, 0)
	for _, l := range s.t.lines {
		if slices.Contains(saleIDs, l.SaleID) {
			result = append(result, &l)
		}
	}
	slices.SortFunc(result, func(a, b *sale.LineItem) int {
		return cmp.Or(a.AddedAt.Compare(b.AddedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, p *sale.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.payments[p.ID]; exists {
		return cahiers.ErrAlreadyExists
	}
	if _, ok := s.t.sales[p.SaleID]; !ok {
		return cahiers.ErrSaleNotFound
	}
	s.t.payments[p.ID] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*sale.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.t.payments[paymentID]; ok {
		return &p, nil
	}
	return nil, cahiers.ErrPaymentNotFound
}

func (s *Store) UpdatePayment(_ context.Context, p *sale.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.payments[p.ID]; !exists {
		return cahiers.ErrPaymentNotFound
	}
	s.t.payments[p.ID] = *p
	return nil
}

func (s *Store) ListPayments(_ context.Context, saleIDs ...id.SaleID) ([]*sale.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*sale.Payment, 0)
	for _, p := range s.t.payments {
		if slices.Contains(saleIDs, p.SaleID) {
			result = append(result, &p)
		}
	}
	slices.SortFunc(result, func(a, b *sale.Payment) int {
		return cmp.Or(
			cmp.Compare(a.SaleID.String(), b.SaleID.String()),
			cmp.Compare(a.Installment, b.Installment),
			a.PaidAt.Compare(b.PaidAt),
		)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// header strips hydrated children before a sale is stored.
func header(sl *sale.Sale) sale.Sale {
	h := *sl
	h.Lines = nil
	h.Payments = nil
	return h
}

func sortSales(list []*sale.Sale) {
	slices.SortFunc(list, func(a, b *sale.Sale) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
}

func page[T any](list []T, offset, limit int) []T {
	start := min(max(offset, 0), len(list))
	end := len(list)
	if limit > 0 {
		end = min(start+limit, len(list))
	}
	return list[start:end]
}
