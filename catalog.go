package cahiers

import (
	"context"
	"strings"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/types"
)

// ──────────────────────────────────────────────────
// Schools
// ──────────────────────────────────────────────────

// CreateSchool registers a customer school.
func (l *Ledger) CreateSchool(ctx context.Context, in SchoolInput) (*school.School, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	s := &school.School{
		Entity:         types.NewEntityAt(l.clock()),
		ID:             id.NewSchoolID(),
		Name:           in.Name,
		Address:        strings.TrimSpace(in.Address),
		Representative: strings.TrimSpace(in.Representative),
		Phone:          strings.TrimSpace(in.Phone),
	}
	if err := l.store.CreateSchool(ctx, s); err != nil {
		return nil, err
	}

	l.plugins.EmitSchoolCreated(ctx, s)
	return s, nil
}

// GetSchool retrieves a school by ID.
func (l *Ledger) GetSchool(ctx context.Context, schoolID id.SchoolID) (*school.School, error) {
	return l.store.GetSchool(ctx, schoolID)
}

// UpdateSchool replaces a school's contact details.
func (l *Ledger) UpdateSchool(ctx context.Context, schoolID id.SchoolID, in SchoolInput) (*school.School, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	s, err := l.store.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	s.Name = in.Name
	s.Address = strings.TrimSpace(in.Address)
	s.Representative = strings.TrimSpace(in.Representative)
	s.Phone = strings.TrimSpace(in.Phone)
	s.TouchAt(l.clock())

	if err := l.store.UpdateSchool(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSchool removes a school. A school with sales on record cannot be
// deleted and yields ErrInUse.
func (l *Ledger) DeleteSchool(ctx context.Context, schoolID id.SchoolID) error {
	if err := l.store.DeleteSchool(ctx, schoolID); err != nil {
		return err
	}
	l.logger.Info("school deleted", "school_id", schoolID.String())
	return nil
}

// ListSchools lists schools by name.
func (l *Ledger) ListSchools(ctx context.Context, opts school.ListOpts) ([]*school.School, error) {
	return l.store.ListSchools(ctx, opts)
}

// ──────────────────────────────────────────────────
// Items
// ──────────────────────────────────────────────────

// CreateItem adds a notebook to the catalog.
func (l *Ledger) CreateItem(ctx context.Context, in ItemInput) (*item.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.validate(); err != nil {
		return nil, err
	}
	price, err := l.ledgerMoney("unit_price", in.UnitPrice)
	if err != nil {
		return nil, err
	}

	it := &item.Item{
		Entity:        types.NewEntityAt(l.clock()),
		ID:            id.NewItemID(),
		Title:         in.Title,
		UnitPrice:     price,
		StockQuantity: in.StockQuantity,
	}
	if err := l.store.CreateItem(ctx, it); err != nil {
		return nil, err
	}

	l.plugins.EmitItemCreated(ctx, it)
	return it, nil
}

// GetItem retrieves an item by ID.
func (l *Ledger) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	return l.store.GetItem(ctx, itemID)
}

// UpdateItem changes an item's title and price. Stock is left untouched;
// use RestockItem. Line amounts already sold keep the price they were sold at.
func (l *Ledger) UpdateItem(ctx context.Context, itemID id.ItemID, in ItemInput) (*item.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.validate(); err != nil {
		return nil, err
	}
	price, err := l.ledgerMoney("unit_price", in.UnitPrice)
	if err != nil {
		return nil, err
	}

	var it *item.Item
	err = l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		locked, err := tx.LockItems(ctx, []id.ItemID{itemID})
		if err != nil {
			return err
		}
		it = locked[itemID]
		it.Title = in.Title
		it.UnitPrice = price
		it.TouchAt(l.clock())
		return tx.UpdateItem(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// RestockItem adds quantity units to an item's stock.
func (l *Ledger) RestockItem(ctx context.Context, itemID id.ItemID, quantity int64) (*item.Item, error) {
	if quantity <= 0 {
		return nil, ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}

	var it *item.Item
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.LockItems(ctx, []id.ItemID{itemID}); err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, itemID, quantity); err != nil {
			return err
		}
		var err error
		it, err = tx.GetItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("item restocked", "item_id", itemID.String(), "quantity", quantity, "stock", it.StockQuantity)
	l.plugins.EmitStockAdjusted(ctx, itemID, quantity, it.StockQuantity)
	return it, nil
}

// DeleteItem removes an item from the catalog. Items referenced by a sale
// line cannot be deleted and yield ErrInUse.
func (l *Ledger) DeleteItem(ctx context.Context, itemID id.ItemID) error {
	if err := l.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	l.logger.Info("item deleted", "item_id", itemID.String())
	return nil
}

// ListItems lists catalog items by title.
func (l *Ledger) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	return l.store.ListItems(ctx, opts)
}

// LowStockItems lists items whose stock is below threshold. A threshold of
// zero or less uses the configured one.
func (l *Ledger) LowStockItems(ctx context.Context, threshold int64) ([]*item.Item, error) {
	if threshold <= 0 {
		threshold = l.lowStockThreshold
	}
	return l.store.ListItems(ctx, item.ListOpts{BelowStock: threshold})
}

// ──────────────────────────────────────────────────
// Stock bookkeeping
// ──────────────────────────────────────────────────

// stockLedger accumulates the stock movements of one operation so they can
// be checked against locked rows and reported after commit.
type stockLedger struct {
	items  map[id.ItemID]*item.Item
	deltas map[id.ItemID]int64
	order  []id.ItemID
}

func newStockLedger(items map[id.ItemID]*item.Item) *stockLedger {
	return &stockLedger{items: items, deltas: make(map[id.ItemID]int64)}
}

// available is the stock left once pending movements are applied.
func (s *stockLedger) available(itemID id.ItemID) int64 {
	return s.items[itemID].StockQuantity + s.deltas[itemID]
}

func (s *stockLedger) move(itemID id.ItemID, delta int64) {
	if _, seen := s.deltas[itemID]; !seen {
		s.order = append(s.order, itemID)
	}
	s.deltas[itemID] += delta
}

// reserve checks every request against available stock before moving any.
// Requests for the same item are summed.
func (s *stockLedger) reserve(requests []LineInput) error {
	wanted := make(map[id.ItemID]int64)
	var order []id.ItemID
	for _, r := range requests {
		if _, seen := wanted[r.ItemID]; !seen {
			order = append(order, r.ItemID)
		}
		wanted[r.ItemID] += r.Quantity
	}

	var short []StockShortage
	for _, itemID := range order {
		if avail := s.available(itemID); avail < wanted[itemID] {
			short = append(short, StockShortage{
				ItemID:    itemID,
				Title:     s.items[itemID].Title,
				Available: avail,
				Requested: wanted[itemID],
			})
		}
	}
	if len(short) > 0 {
		return &InsufficientStockError{Shortages: short}
	}

	for _, itemID := range order {
		s.move(itemID, -wanted[itemID])
	}
	return nil
}

// apply writes the accumulated movements.
func (s *stockLedger) apply(ctx context.Context, tx store.Store) error {
	for _, itemID := range s.order {
		if d := s.deltas[itemID]; d != 0 {
			if err := tx.AdjustStock(ctx, itemID, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// emit reports committed movements to plugins.
func (l *Ledger) emitStock(ctx context.Context, s *stockLedger) {
	for _, itemID := range s.order {
		d := s.deltas[itemID]
		if d == 0 {
			continue
		}
		after := s.items[itemID].StockQuantity + d
		l.plugins.EmitStockAdjusted(ctx, itemID, d, after)
		if d < 0 && after < l.lowStockThreshold {
			it := *s.items[itemID]
			it.StockQuantity = after
			l.logger.Warn("item stock is low", "item_id", itemID.String(), "title", it.Title, "stock", after)
			l.plugins.EmitLowStock(ctx, &it, l.lowStockThreshold)
		}
	}
}
