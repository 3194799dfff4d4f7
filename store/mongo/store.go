// Package mongo implements store.Store on MongoDB.
//
// WithTx needs a replica set or sharded cluster. MongoDB has no
// SELECT ... FOR UPDATE; LockItems and LockSchoolSales bump a lock
// counter on the matched documents inside the transaction, so two
// transactions touching the same documents conflict and one of them is
// retried by the driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
)

// Collection name constants.
const (
	colSchoolYears = "cahiers_school_years"
	colSchools     = "cahiers_schools"
	colItems       = "cahiers_items"
	colSales       = "cahiers_sales"
	colLineItems   = "cahiers_line_items"
	colPayments    = "cahiers_payments"
)

// lockField is incremented on documents locked inside a transaction.
const lockField = "lock_version"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using the official MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	inTx   bool
}

// New creates a store over an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Open connects to the deployment at uri.
func Open(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cahiers/mongo: connect: %w", err)
	}
	return New(client, database), nil
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: %s indexes: %w", cahiers.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// WithTx runs fn in a multi-document transaction. Nested calls join the
// running transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: %w", cahiers.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	tx := &Store{client: s.client, db: s.db, inTx: true}
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, tx)
	})
	return err
}

// ==================== School Year Store ====================

func (s *Store) CreateSchoolYear(ctx context.Context, y *schoolyear.SchoolYear) error {
	n, err := s.col(colSchoolYears).CountDocuments(ctx, bson.M{"start_year": y.StartYear})
	if err != nil {
		return fmt.Errorf("cahiers/mongo: create school year: %w", err)
	}
	if n > 0 {
		return cahiers.ErrSchoolYearExists
	}
	return s.insert(ctx, colSchoolYears, toSchoolYearModel(y))
}

func (s *Store) GetSchoolYear(ctx context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error) {
	return findOne(ctx, s.col(colSchoolYears), bson.M{"_id": yearID.String()}, fromSchoolYearModel, cahiers.ErrSchoolYearNotFound)
}

func (s *Store) GetSchoolYearByStart(ctx context.Context, startYear int) (*schoolyear.SchoolYear, error) {
	return findOne(ctx, s.col(colSchoolYears), bson.M{"start_year": startYear}, fromSchoolYearModel, cahiers.ErrSchoolYearNotFound)
}

func (s *Store) GetActiveSchoolYear(ctx context.Context) (*schoolyear.SchoolYear, error) {
	return findOne(ctx, s.col(colSchoolYears), bson.M{"is_active": true}, fromSchoolYearModel, cahiers.ErrNoActiveSchoolYear)
}

func (s *Store) ListSchoolYears(ctx context.Context) ([]*schoolyear.SchoolYear, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_year", Value: -1}})
	return findMany(ctx, s.col(colSchoolYears), bson.M{}, opts, fromSchoolYearModel)
}

func (s *Store) ActivateSchoolYear(ctx context.Context, yearID id.SchoolYearID) error {
	if _, err := s.GetSchoolYear(ctx, yearID); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.col(colSchoolYears).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": yearID.String()}, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("cahiers/mongo: deactivate school years: %w", err)
	}
	_, err = s.col(colSchoolYears).UpdateOne(ctx,
		bson.M{"_id": yearID.String(), "is_active": false},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("cahiers/mongo: activate school year: %w", err)
	}
	return nil
}

// ==================== School Store ====================

func (s *Store) CreateSchool(ctx context.Context, sc *school.School) error {
	return s.insert(ctx, colSchools, toSchoolModel(sc))
}

func (s *Store) GetSchool(ctx context.Context, schoolID id.SchoolID) (*school.School, error) {
	return findOne(ctx, s.col(colSchools), bson.M{"_id": schoolID.String()}, fromSchoolModel, cahiers.ErrSchoolNotFound)
}

func (s *Store) UpdateSchool(ctx context.Context, sc *school.School) error {
	return s.replace(ctx, colSchools, sc.ID, toSchoolModel(sc), cahiers.ErrSchoolNotFound)
}

func (s *Store) DeleteSchool(ctx context.Context, schoolID id.SchoolID) error {
	return s.deleteUnreferenced(ctx, colSchools, schoolID, colSales, "school_id", cahiers.ErrSchoolNotFound)
}

func (s *Store) ListSchools(ctx context.Context, opts school.ListOpts) ([]*school.School, error) {
	filter := bson.M{}
	if opts.Search != "" {
		filter["name"] = contains(opts.Search)
	}
	find := paged(options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}), opts.Offset, opts.Limit)
	return findMany(ctx, s.col(colSchools), filter, find, fromSchoolModel)
}

// ==================== Item Store ====================

func (s *Store) CreateItem(ctx context.Context, it *item.Item) error {
	m, err := toItemModel(it)
	if err != nil {
		return err
	}
	return s.insert(ctx, colItems, m)
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	return findOne(ctx, s.col(colItems), bson.M{"_id": itemID.String()}, fromItemModel, cahiers.ErrItemNotFound)
}

func (s *Store) UpdateItem(ctx context.Context, it *item.Item) error {
	m, err := toItemModel(it)
	if err != nil {
		return err
	}
	return s.replace(ctx, colItems, it.ID, m, cahiers.ErrItemNotFound)
}

func (s *Store) DeleteItem(ctx context.Context, itemID id.ItemID) error {
	return s.deleteUnreferenced(ctx, colItems, itemID, colLineItems, "item_id", cahiers.ErrItemNotFound)
}

func (s *Store) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	filter := bson.M{}
	if opts.Search != "" {
		filter["title"] = contains(opts.Search)
	}
	if opts.BelowStock > 0 {
		filter["stock_quantity"] = bson.M{"$lt": opts.BelowStock}
	}
	find := paged(options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}), opts.Offset, opts.Limit)
	return findMany(ctx, s.col(colItems), filter, find, fromItemModel)
}

func (s *Store) LockItems(ctx context.Context, itemIDs []id.ItemID) (map[id.ItemID]*item.Item, error) {
	result := make(map[id.ItemID]*item.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	filter := bson.M{"_id": bson.M{"$in": idStrings(itemIDs)}}
	if err := s.lock(ctx, colItems, filter); err != nil {
		return nil, err
	}
	items, err := findMany(ctx, s.col(colItems), filter, options.Find(), fromItemModel)
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
	res, err := s.col(colItems).UpdateOne(ctx,
		bson.M{"_id": itemID.String()},
		bson.M{
			"$inc": bson.M{"stock_quantity": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("cahiers/mongo: adjust stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return cahiers.ErrItemNotFound
	}
	return nil
}

// ==================== Sale Store ====================

func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	return s.insert(ctx, colSales, toSaleModel(sl))
}

func (s *Store) GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	return findOne(ctx, s.col(colSales), bson.M{"_id": saleID.String()}, fromSaleModel, cahiers.ErrSaleNotFound)
}

func (s *Store) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	return s.replace(ctx, colSales, sl.ID, toSaleModel(sl), cahiers.ErrSaleNotFound)
}

func (s *Store) DeleteSale(ctx context.Context, saleID id.SaleID) error {
	key := saleID.String()
	res, err := s.col(colSales).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("cahiers/mongo: delete sale: %w", err)
	}
	if res.DeletedCount == 0 {
		return cahiers.ErrSaleNotFound
	}
	if _, err := s.col(colLineItems).DeleteMany(ctx, bson.M{"sale_id": key}); err != nil {
		return fmt.Errorf("cahiers/mongo: delete line items: %w", err)
	}
	if _, err := s.col(colPayments).DeleteMany(ctx, bson.M{"sale_id": key}); err != nil {
		return fmt.Errorf("cahiers/mongo: delete payments: %w", err)
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, opts sale.ListOpts) ([]*sale.Sale, error) {
	filter := bson.M{}
	if !opts.SchoolID.IsNil() {
		filter["school_id"] = opts.SchoolID.String()
	}
	if !opts.SchoolYearID.IsNil() {
		filter["school_year_id"] = opts.SchoolYearID.String()
	}
	if opts.DueBefore != nil {
		filter["due_date"] = bson.M{"$lt": opts.DueBefore.UTC()}
	}
	find := paged(options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}), opts.Offset, opts.Limit)
	return findMany(ctx, s.col(colSales), filter, find, fromSaleModel)
}

func (s *Store) LockSchoolSales(ctx context.Context, schoolID id.SchoolID) ([]*sale.Sale, error) {
	if err := s.lock(ctx, colSales, bson.M{"school_id": schoolID.String()}); err != nil {
		return nil, err
	}
	return s.ListSales(ctx, sale.ListOpts{SchoolID: schoolID})
}

// ==================== Line Item Store ====================

func (s *Store) CreateLineItems(ctx context.Context, lines []*sale.LineItem) error {
	if len(lines) == 0 {
		return nil
	}

	saleIDs := make([]id.ID, 0, len(lines))
	docs := make([]any, len(lines))
	for i, l := range lines {
		if !slices.Contains(saleIDs, l.SaleID) {
			saleIDs = append(saleIDs, l.SaleID)
		}
		m, err := toLineItemModel(l)
		if err != nil {
			return err
		}
		docs[i] = m
	}

	n, err := s.col(colSales).CountDocuments(ctx, bson.M{"_id": bson.M{"$in": idStrings(saleIDs)}})
	if err != nil {
		return fmt.Errorf("cahiers/mongo: create line items: %w", err)
	}
	if n != int64(len(saleIDs)) {
		return cahiers.ErrSaleNotFound
	}

	if _, err := s.col(colLineItems).InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cahiers.ErrAlreadyExists
		}
		return fmt.Errorf("cahiers/mongo: create line items: %w", err)
	}
	return nil
}

func (s *Store) GetLineItem(ctx context.Context, lineID id.LineItemID) (*sale.LineItem, error) {
	return findOne(ctx, s.col(colLineItems), bson.M{"_id": lineID.String()}, fromLineItemModel, cahiers.ErrLineItemNotFound)
}

func (s *Store) UpdateLineItem(ctx context.Context, l *sale.LineItem) error {
	m, err := toLineItemModel(l)
	if err != nil {
		return err
	}
	return s.replace(ctx, colLineItems, l.ID, m, cahiers.ErrLineItemNotFound)
}

func (s *Store) DeleteLineItem(ctx context.Context, lineID id.LineItemID) error {
	res, err := s.col(colLineItems).DeleteOne(ctx, bson.M{"_id": lineID.String()})
	if err != nil {
		return fmt.Errorf("cahiers/mongo: delete line item: %w", err)
	}
	if res.DeletedCount == 0 {
		return cahiers.ErrLineItemNotFound
	}
	return nil
}

func (s *Store) ListLineItems(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.LineItem, error) {
	if len(saleIDs) == 0 {
		return []*sale.LineItem{}, nil
	}
	find := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}, {Key: "_id", Value: 1}})
	return findMany(ctx, s.col(colLineItems), bson.M{"sale_id": bson.M{"$in": idStrings(saleIDs)}}, find, fromLineItemModel)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *sale.Payment) error {
	if _, err := s.GetSale(ctx, p.SaleID); err != nil {
		return err
	}
	m, err := toPaymentModel(p)
	if err != nil {
		return err
	}
	return s.insert(ctx, colPayments, m)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*sale.Payment, error) {
	return findOne(ctx, s.col(colPayments), bson.M{"_id": paymentID.String()}, fromPaymentModel, cahiers.ErrPaymentNotFound)
}

func (s *Store) UpdatePayment(ctx context.Context, p *sale.Payment) error {
	m, err := toPaymentModel(p)
	if err != nil {
		return err
	}
	return s.replace(ctx, colPayments, p.ID, m, cahiers.ErrPaymentNotFound)
}

func (s *Store) ListPayments(ctx context.Context, saleIDs ...id.SaleID) ([]*sale.Payment, error) {
	if len(saleIDs) == 0 {
		return []*sale.Payment{}, nil
	}
	find := options.Find().SetSort(bson.D{
		{Key: "sale_id", Value: 1},
		{Key: "installment", Value: 1},
		{Key: "paid_at", Value: 1},
	})
	return findMany(ctx, s.col(colPayments), bson.M{"sale_id": bson.M{"$in": idStrings(saleIDs)}}, find, fromPaymentModel)
}

// ==================== Helpers ====================

// deleteUnreferenced removes the document keyed by docID from name unless a
// document of ref points at it through field.
func (s *Store) deleteUnreferenced(ctx context.Context, name string, docID id.ID, ref, field string, missing error) error {
	key := docID.String()
	n, err := s.col(ref).CountDocuments(ctx, bson.M{field: key}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("cahiers/mongo: count %s: %w", ref, err)
	}
	if n > 0 {
		return cahiers.ErrInUse
	}
	res, err := s.col(name).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("cahiers/mongo: delete from %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return missing
	}
	return nil
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) insert(ctx context.Context, col string, doc any) error {
	if _, err := s.col(col).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cahiers.ErrAlreadyExists
		}
		return fmt.Errorf("cahiers/mongo: insert into %s: %w", col, err)
	}
	return nil
}

func (s *Store) replace(ctx context.Context, col string, docID id.ID, doc any, missing error) error {
	res, err := s.col(col).ReplaceOne(ctx, bson.M{"_id": docID.String()}, doc)
	if err != nil {
		return fmt.Errorf("cahiers/mongo: replace in %s: %w", col, err)
	}
	if res.MatchedCount == 0 {
		return missing
	}
	return nil
}

// lock takes write locks on the matched documents. Outside a transaction
// it is a no-op.
func (s *Store) lock(ctx context.Context, col string, filter bson.M) error {
	if !s.inTx {
		return nil
	}
	if _, err := s.col(col).UpdateMany(ctx, filter, bson.M{"$inc": bson.M{lockField: 1}}); err != nil {
		return fmt.Errorf("cahiers/mongo: lock %s: %w", col, err)
	}
	return nil
}

func findOne[M, E any](ctx context.Context, col *mongo.Collection, filter bson.M, from func(*M) (*E, error), missing error) (*E, error) {
	var m M
	if err := col.FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, missing
		}
		return nil, fmt.Errorf("cahiers/mongo: find in %s: %w", col.Name(), err)
	}
	return from(&m)
}

func findMany[M, E any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptionsBuilder, from func(*M) (*E, error)) ([]*E, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cahiers/mongo: find in %s: %w", col.Name(), err)
	}
	var rows []M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("cahiers/mongo: decode %s: %w", col.Name(), err)
	}
	out := make([]*E, len(rows))
	for i := range rows {
		e, err := from(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func paged(opts *options.FindOptionsBuilder, offset, limit int) *options.FindOptionsBuilder {
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return opts
}

// contains matches a case-insensitive substring.
func contains(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

func idStrings(ids []id.ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSchoolYears: {
			{
				Keys:    bson.D{{Key: "start_year", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
		colSchools: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		colItems: {
			{Keys: bson.D{{Key: "title", Value: 1}}},
			{Keys: bson.D{{Key: "stock_quantity", Value: 1}}},
		},
		colSales: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "school_year_id", Value: 1}}},
			{Keys: bson.D{{Key: "due_date", Value: 1}}},
		},
		colLineItems: {
			{Keys: bson.D{{Key: "sale_id", Value: 1}, {Key: "added_at", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "sale_id", Value: 1}, {Key: "installment", Value: 1}}},
		},
	}
}
