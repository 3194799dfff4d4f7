// Package store defines the persistence contract of the ledger.
package store

import (
	"context"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
)

// Store is the unified storage interface for all ledger entities.
// Instead of embedding per-entity interfaces, all methods are declared
// explicitly to avoid naming conflicts.
//
// Stores return the entity not-found sentinels of the root package
// (ErrSaleNotFound, ErrItemNotFound, ...) when a lookup misses.
type Store interface {
	// School year methods
	CreateSchoolYear(ctx context.Context, y *schoolyear.SchoolYear) error
	GetSchoolYear(ctx context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error)
	GetSchoolYearByStart(ctx context.Context, startYear int) (*schoolyear.SchoolYear, error)
	GetActiveSchoolYear(ctx context.Context) (*schoolyear.SchoolYear, error)
	// ListSchoolYears returns school years, most recent first.
	ListSchoolYears(ctx context.Context) ([]*schoolyear.SchoolYear, error)
	// ActivateSchoolYear marks one year active and every other year inactive.
	ActivateSchoolYear(ctx context.Context, yearID id.SchoolYearID) error

	// School methods
	CreateSchool(ctx context.Context, s *school.School) error
	GetSchool(ctx context.Context, schoolID id.SchoolID) (*school.School, error)
	UpdateSchool(ctx context.Context, s *school.School) error
	ListSchools(ctx context.Context, opts school.ListOpts) ([]*school.School, error)
	// DeleteSchool removes a school no sale references; otherwise ErrInUse.
	DeleteSchool(ctx context.Context, schoolID id.SchoolID) error

	// Item methods
	CreateItem(ctx context.Context, it *item.Item) error
	GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error)
	UpdateItem(ctx context.Context, it *item.Item) error
	ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error)
	// DeleteItem removes an item no sale line references; otherwise ErrInUse.
	DeleteItem(ctx context.Context, itemID id.ItemID) error
	// LockItems loads the items for update. Inside WithTx the rows stay
	// locked until the transaction ends.
	LockItems(ctx context.Context, itemIDs []id.ItemID) (map[id.ItemID]*item.Item, error)
	// AdjustStock adds delta to an item's stock quantity.
	AdjustStock(ctx context.Context, itemID id.ItemID, delta int64) error

	// Sale methods
	CreateSale(ctx context.Context, s *sale.Sale) error
	GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error)
	UpdateSale(ctx context.Context, s *sale.Sale) error
	// DeleteSale removes the sale with its line items and payments.
	DeleteSale(ctx context.Context, saleID id.SaleID) error
	ListSales(ctx context.Context, opts sale.ListOpts) ([]*sale.Sale, error)
	// LockSchoolSales loads every sale of a school for update.
	LockSchoolSales(ctx context.Context, schoolID id.SchoolID) ([]*sale.Sale, error)

	// Line item methods
	CreateLineItems(ctx context.Context, lines []*sale.LineItem) error
	GetLineItem(ctx context.Context, lineID id.LineItemID) (*sale.LineItem, error)
	UpdateLineItem(ctx context.Context, l *sale.LineItem) error
	DeleteLineItem(ctx context.Context, lineID id.LineItemID) error
	// ListLineItems returns the lines of the given sales ordered by AddedAt.
	ListLineItems(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.LineItem, error)

	// Payment methods
	CreatePayment(ctx context.Context, p *sale.Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*sale.Payment, error)
	UpdatePayment(ctx context.Context, p *sale.Payment) error
	// ListPayments returns the payments of the given sales ordered by
	// installment, cancelled ones included.
	ListPayments(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.Payment, error)

	// WithTx runs fn inside a transaction. Any error returned by fn rolls
	// back every write fn made through tx.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
