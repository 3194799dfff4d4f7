// Package gormstore implements store.Store on GORM for PostgreSQL, MySQL
// and SQLite.
//
// Rows read inside WithTx are locked with SELECT ... FOR UPDATE on
// PostgreSQL and MySQL. SQLite has no row locks; the store opens it with a
// single connection so transactions are serialized instead.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New wraps an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("cahiers/gormstore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("cahiers/gormstore: open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db), nil
}

// DB returns the underlying GORM handle for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&schoolYearModel{},
		&schoolModel{},
		&itemModel{},
		&saleModel{},
		&lineItemModel{},
		&paymentModel{},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", cahiers.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a database transaction. Nested calls join the
// running transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, inTx: true})
	})
}

// ==================== School Year Store ====================

func (s *Store) CreateSchoolYear(ctx context.Context, y *schoolyear.SchoolYear) error {
	var n int64
	if err := s.q(ctx).Model(&schoolYearModel{}).Where("start_year = ?", y.StartYear).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return cahiers.ErrSchoolYearExists
	}
	return s.create(ctx, toSchoolYearModel(y))
}

func (s *Store) GetSchoolYear(ctx context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error) {
	m := new(schoolYearModel)
	if err := s.q(ctx).Where("id = ?", yearID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrSchoolYearNotFound)
	}
	return fromSchoolYearModel(m)
}

func (s *Store) GetSchoolYearByStart(ctx context.Context, startYear int) (*schoolyear.SchoolYear, error) {
	m := new(schoolYearModel)
	if err := s.q(ctx).Where("start_year = ?", startYear).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrSchoolYearNotFound)
	}
	return fromSchoolYearModel(m)
}

func (s *Store) GetActiveSchoolYear(ctx context.Context) (*schoolyear.SchoolYear, error) {
	m := new(schoolYearModel)
	if err := s.q(ctx).Where("is_active = ?", true).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrNoActiveSchoolYear)
	}
	return fromSchoolYearModel(m)
}

func (s *Store) ListSchoolYears(ctx context.Context) ([]*schoolyear.SchoolYear, error) {
	var rows []schoolYearModel
	if err := s.q(ctx).Order("start_year DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows, fromSchoolYearModel)
}

func (s *Store) ActivateSchoolYear(ctx context.Context, yearID id.SchoolYearID) error {
	return s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		t := tx.(*Store) //nolint:forcetypeassert // WithTx always hands back a *Store
		if _, err := t.GetSchoolYear(ctx, yearID); err != nil {
			return err
		}
		now := time.Now().UTC()
		err := t.q(ctx).Model(&schoolYearModel{}).
			Where("id <> ? AND is_active = ?", yearID.String(), true).
			Updates(map[string]any{"is_active": false, "updated_at": now}).Error
		if err != nil {
			return err
		}
		return t.q(ctx).Model(&schoolYearModel{}).
			Where("id = ? AND is_active = ?", yearID.String(), false).
			Updates(map[string]any{"is_active": true, "updated_at": now}).Error
	})
}

// ==================== School Store ====================

func (s *Store) CreateSchool(ctx context.Context, sc *school.School) error {
	return s.create(ctx, toSchoolModel(sc))
}

func (s *Store) GetSchool(ctx context.Context, schoolID id.SchoolID) (*school.School, error) {
	m := new(schoolModel)
	if err := s.q(ctx).Where("id = ?", schoolID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrSchoolNotFound)
	}
	return fromSchoolModel(m)
}

func (s *Store) UpdateSchool(ctx context.Context, sc *school.School) error {
	return s.update(ctx, toSchoolModel(sc), sc.ID, cahiers.ErrSchoolNotFound)
}

func (s *Store) DeleteSchool(ctx context.Context, schoolID id.SchoolID) error {
	return s.deleteUnreferenced(ctx, &schoolModel{}, schoolID, &saleModel{}, "school_id", cahiers.ErrSchoolNotFound)
}

func (s *Store) ListSchools(ctx context.Context, opts school.ListOpts) ([]*school.School, error) {
	var rows []schoolModel
	q := s.q(ctx)
	if opts.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", like(opts.Search))
	}
	q = paged(q.Order("name ASC").Order("id ASC"), opts.Offset, opts.Limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows, fromSchoolModel)
}

// ==================== Item Store ====================

func (s *Store) CreateItem(ctx context.Context, it *item.Item) error {
	return s.create(ctx, toItemModel(it))
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	m := new(itemModel)
	if err := s.q(ctx).Where("id = ?", itemID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrItemNotFound)
	}
	return fromItemModel(m)
}

func (s *Store) UpdateItem(ctx context.Context, it *item.Item) error {
	return s.update(ctx, toItemModel(it), it.ID, cahiers.ErrItemNotFound)
}

func (s *Store) DeleteItem(ctx context.Context, itemID id.ItemID) error {
	return s.deleteUnreferenced(ctx, &itemModel{}, itemID, &lineItemModel{}, "item_id", cahiers.ErrItemNotFound)
}

func (s *Store) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	var rows []itemModel
	q := s.q(ctx)
	if opts.Search != "" {
		q = q.Where("LOWER(title) LIKE ?", like(opts.Search))
	}
	if opts.BelowStock > 0 {
		q = q.Where("stock_quantity < ?", opts.BelowStock)
	}
	q = paged(q.Order("title ASC").Order("id ASC"), opts.Offset, opts.Limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows, fromItemModel)
}

func (s *Store) LockItems(ctx context.Context, itemIDs []id.ItemID) (map[id.ItemID]*item.Item, error) {
	result := make(map[id.ItemID]*item.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	var rows []itemModel
	err := s.forUpdate(s.q(ctx)).
		Where("id IN ?", idStrings(itemIDs)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items, err := fromModels(rows, fromItemModel)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		result[it.ID] = it
	}
	for _, itemID := range itemIDs {
		if _, ok := result[itemID]; !ok {
			return nil, cahiers.ErrItemNotFound
		}
	}
	return result, nil
}

func (s *Store) AdjustStock(ctx context.Context, itemID id.ItemID, delta int64) error {
	res := s.q(ctx).Model(&itemModel{}).
		Where("id = ?", itemID.String()).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cahiers.ErrItemNotFound
	}
	return nil
}

// ==================== Sale Store ====================

func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	return s.create(ctx, toSaleModel(sl))
}

func (s *Store) GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	m := new(saleModel)
	if err := s.q(ctx).Where("id = ?", saleID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrSaleNotFound)
	}
	return fromSaleModel(m)
}

func (s *Store) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	return s.update(ctx, toSaleModel(sl), sl.ID, cahiers.ErrSaleNotFound)
}

func (s *Store) DeleteSale(ctx context.Context, saleID id.SaleID) error {
	return s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		t := tx.(*Store) //nolint:forcetypeassert // WithTx always hands back a *Store
		key := saleID.String()
		if err := t.q(ctx).Where("sale_id = ?", key).Delete(&lineItemModel{}).Error; err != nil {
			return err
		}
		if err := t.q(ctx).Where("sale_id = ?", key).Delete(&paymentModel{}).Error; err != nil {
			return err
		}
		res := t.q(ctx).Where("id = ?", key).Delete(&saleModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return cahiers.ErrSaleNotFound
		}
		return nil
	})
}

func (s *Store) ListSales(ctx context.Context, opts sale.ListOpts) ([]*sale.Sale, error) {
	return s.listSales(ctx, s.q(ctx), opts)
}

func (s *Store) LockSchoolSales(ctx context.Context, schoolID id.SchoolID) ([]*sale.Sale, error) {
	return s.listSales(ctx, s.forUpdate(s.q(ctx)), sale.ListOpts{SchoolID: schoolID})
}

func (s *Store) listSales(_ context.Context, q *gorm.DB, opts sale.ListOpts) ([]*sale.Sale, error) {
	var rows []saleModel
	if !opts.SchoolID.IsNil() {
		q = q.Where("school_id = ?", opts.SchoolID.String())
	}
	if !opts.SchoolYearID.IsNil() {
		q = q.Where("school_year_id = ?", opts.SchoolYearID.String())
	}
	if opts.DueBefore != nil {
		q = q.Where("due_date < ?", opts.DueBefore.UTC())
	}
	q = paged(q.Order("created_at ASC").Order("id ASC"), opts.Offset, opts.Limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromModels(rows, fromSaleModel)
}

// ==================== Line Item Store ====================

func (s *Store) CreateLineItems(ctx context.Context, lines []*sale.LineItem) error {
	if len(lines) == 0 {
		return nil
	}

	saleIDs := make([]id.ID, 0, len(lines))
	rows := make([]*lineItemModel, len(lines))
	for i, l := range lines {
		if !slices.Contains(saleIDs, l.SaleID) {
			saleIDs = append(saleIDs, l.SaleID)
		}
		rows[i] = toLineItemModel(l)
	}

	var n int64
	if err := s.q(ctx).Model(&saleModel{}).Where("id IN ?", idStrings(saleIDs)).Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(saleIDs)) {
		return cahiers.ErrSaleNotFound
	}
	return s.create(ctx, &rows)
}

func (s *Store) GetLineItem(ctx context.Context, lineID id.LineItemID) (*sale.LineItem, error) {
	m := new(lineItemModel)
	if err := s.q(ctx).Where("id = ?", lineID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrLineItemNotFound)
	}
	return fromLineItemModel(m)
}

func (s *Store) UpdateLineItem(ctx context.Context, l *sale.LineItem) error {
	return s.update(ctx, toLineItemModel(l), l.ID, cahiers.ErrLineItemNotFound)
}

func (s *Store) DeleteLineItem(ctx context.Context, lineID id.LineItemID) error {
	res := s.q(ctx).Where("id = ?", lineID.String()).Delete(&lineItemModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cahiers.ErrLineItemNotFound
	}
	return nil
}

func (s *Store) ListLineItems(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.LineItem, error) {
	if len(saleIDs) == 0 {
		return []*sale.LineItem{}, nil
	}
	var rows []lineItemModel
	err := s.q(ctx).
		Where("sale_id IN ?", idStrings(saleIDs)).
		Order("added_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows, fromLineItemModel)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *sale.Payment) error {
	if _, err := s.GetSale(ctx, p.SaleID); err != nil {
		return err
	}
	return s.create(ctx, toPaymentModel(p))
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*sale.Payment, error) {
	m := new(paymentModel)
	if err := s.q(ctx).Where("id = ?", paymentID.String()).Take(m).Error; err != nil {
		return nil, notFound(err, cahiers.ErrPaymentNotFound)
	}
	return fromPaymentModel(m)
}

func (s *Store) UpdatePayment(ctx context.Context, p *sale.Payment) error {
	return s.update(ctx, toPaymentModel(p), p.ID, cahiers.ErrPaymentNotFound)
}

func (s *Store) ListPayments(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.Payment, error) {
	if len(saleIDs) == 0 {
		return []*sale.Payment{}, nil
	}
	var rows []paymentModel
	err := s.q(ctx).
		Where("sale_id IN ?", idStrings(saleIDs)).
		Order("sale_id ASC").Order("installment ASC").Order("paid_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows, fromPaymentModel)
}

// ==================== Helpers ====================

func (s *Store) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// forUpdate adds a row lock when the dialect supports one.
func (s *Store) forUpdate(q *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() == DriverSQLite {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *Store) create(ctx context.Context, value any) error {
	err := s.q(ctx).Create(value).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return cahiers.ErrAlreadyExists
	}
	return err
}

// update overwrites every column of the row keyed by rowID.
func (s *Store) update(ctx context.Context, value any, rowID id.ID, missing error) error {
	var n int64
	if err := s.q(ctx).Model(value).Where("id = ?", rowID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return s.q(ctx).Model(value).Where("id = ?", rowID.String()).Select("*").Updates(value).Error
}

// deleteUnreferenced removes the row keyed by rowID unless a row of ref
// points at it through column.
func (s *Store) deleteUnreferenced(ctx context.Context, value any, rowID id.ID, ref any, column string, missing error) error {
	return s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		t := tx.(*Store) //nolint:forcetypeassert // WithTx always hands back a *Store
		var n int64
		if err := t.q(ctx).Model(ref).Where(column+" = ?", rowID.String()).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return cahiers.ErrInUse
		}
		res := t.q(ctx).Where("id = ?", rowID.String()).Delete(value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missing
		}
		return nil
	})
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func like(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

func paged(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
