package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/types"
)

// ==================== School year models ====================

type schoolYearModel struct {
	ID        string    `bson:"_id"`
	StartYear int       `bson:"start_year"`
	EndYear   int       `bson:"end_year"`
	StartDate time.Time `bson:"start_date"`
	EndDate   time.Time `bson:"end_date"`
	IsActive  bool      `bson:"is_active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSchoolYearModel(y *schoolyear.SchoolYear) *schoolYearModel {
	return &schoolYearModel{
		ID:        y.ID.String(),
		StartYear: y.StartYear,
		EndYear:   y.EndYear,
		StartDate: y.StartDate,
		EndDate:   y.EndDate,
		IsActive:  y.IsActive,
		CreatedAt: y.CreatedAt,
		UpdatedAt: y.UpdatedAt,
	}
}

func fromSchoolYearModel(m *schoolYearModel) (*schoolyear.SchoolYear, error) {
	yearID, err := id.ParseSchoolYearID(m.ID)
	if err != nil {
		return nil, err
	}
	return &schoolyear.SchoolYear{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
		ID:        yearID,
		StartYear: m.StartYear,
		EndYear:   m.EndYear,
		StartDate: m.StartDate.UTC(),
		EndDate:   m.EndDate.UTC(),
		IsActive:  m.IsActive,
	}, nil
}

// ==================== School models ====================

type schoolModel struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Address        string    `bson:"address,omitempty"`
	Representative string    `bson:"representative,omitempty"`
	Phone          string    `bson:"phone,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toSchoolModel(s *school.School) *schoolModel {
	return &schoolModel{
		ID:             s.ID.String(),
		Name:           s.Name,
		Address:        s.Address,
		Representative: s.Representative,
		Phone:          s.Phone,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromSchoolModel(m *schoolModel) (*school.School, error) {
	schoolID, err := id.ParseSchoolID(m.ID)
	if err != nil {
		return nil, err
	}
	return &school.School{
		Entity:         entity(m.CreatedAt, m.UpdatedAt),
		ID:             schoolID,
		Name:           m.Name,
		Address:        m.Address,
		Representative: m.Representative,
		Phone:          m.Phone,
	}, nil
}

// ==================== Item models ====================

type moneyModel struct {
	Amount   bson.Decimal128 `bson:"amount"`
	Currency string          `bson:"currency"`
}

type itemModel struct {
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	UnitPrice     moneyModel `bson:"unit_price"`
	StockQuantity int64      `bson:"stock_quantity"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func toItemModel(it *item.Item) (*itemModel, error) {
	price, err := toMoneyModel(it.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &itemModel{
		ID:            it.ID.String(),
		Title:         it.Title,
		UnitPrice:     price,
		StockQuantity: it.StockQuantity,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}, nil
}

func fromItemModel(m *itemModel) (*item.Item, error) {
	itemID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, err
	}
	price, err := fromMoneyModel(m.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &item.Item{
		Entity:        entity(m.CreatedAt, m.UpdatedAt),
		ID:            itemID,
		Title:         m.Title,
		UnitPrice:     price,
		StockQuantity: m.StockQuantity,
	}, nil
}

// ==================== Sale models ====================

type saleModel struct {
	ID               string     `bson:"_id"`
	SchoolID         string     `bson:"school_id"`
	SchoolYearID     string     `bson:"school_year_id"`
	DueDate          time.Time  `bson:"due_date"`
	ModifiedAt       *time.Time `bson:"modified_at,omitempty"`
	LastModification string     `bson:"last_modification,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func toSaleModel(s *sale.Sale) *saleModel {
	return &saleModel{
		ID:               s.ID.String(),
		SchoolID:         s.SchoolID.String(),
		SchoolYearID:     s.SchoolYearID.String(),
		DueDate:          s.DueDate,
		ModifiedAt:       s.ModifiedAt,
		LastModification: string(s.LastModification),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func fromSaleModel(m *saleModel) (*sale.Sale, error) {
	saleID, err := id.ParseSaleID(m.ID)
	if err != nil {
		return nil, err
	}
	schoolID, err := id.ParseSchoolID(m.SchoolID)
	if err != nil {
		return nil, err
	}
	yearID, err := id.ParseSchoolYearID(m.SchoolYearID)
	if err != nil {
		return nil, err
	}
	return &sale.Sale{
		Entity:           entity(m.CreatedAt, m.UpdatedAt),
		ID:               saleID,
		SchoolID:         schoolID,
		SchoolYearID:     yearID,
		DueDate:          m.DueDate.UTC(),
		ModifiedAt:       utcPtr(m.ModifiedAt),
		LastModification: sale.ModificationKind(m.LastModification),
	}, nil
}

// ==================== Line item models ====================

type lineItemModel struct {
	ID        string     `bson:"_id"`
	SaleID    string     `bson:"sale_id"`
	ItemID    string     `bson:"item_id"`
	ItemTitle string     `bson:"item_title"`
	UnitPrice moneyModel `bson:"unit_price"`
	Quantity  int64      `bson:"quantity"`
	Amount    moneyModel `bson:"amount"`
	AddedAt   time.Time  `bson:"added_at"`
}

func toLineItemModel(l *sale.LineItem) (*lineItemModel, error) {
	price, err := toMoneyModel(l.UnitPrice)
	if err != nil {
		return nil, err
	}
	amount, err := toMoneyModel(l.Amount)
	if err != nil {
		return nil, err
	}
	return &lineItemModel{
		ID:        l.ID.String(),
		SaleID:    l.SaleID.String(),
		ItemID:    l.ItemID.String(),
		ItemTitle: l.ItemTitle,
		UnitPrice: price,
		Quantity:  l.Quantity,
		Amount:    amount,
		AddedAt:   l.AddedAt,
	}, nil
}

func fromLineItemModel(m *lineItemModel) (*sale.LineItem, error) {
	lineID, err := id.ParseLineItemID(m.ID)
	if err != nil {
		return nil, err
	}
	saleID, err := id.ParseSaleID(m.SaleID)
	if err != nil {
		return nil, err
	}
	itemID, err := id.ParseItemID(m.ItemID)
	if err != nil {
		return nil, err
	}
	price, err := fromMoneyModel(m.UnitPrice)
	if err != nil {
		return nil, err
	}
	amount, err := fromMoneyModel(m.Amount)
	if err != nil {
		return nil, err
	}
	return &sale.LineItem{
		ID:        lineID,
		SaleID:    saleID,
		ItemID:    itemID,
		ItemTitle: m.ItemTitle,
		UnitPrice: price,
		Quantity:  m.Quantity,
		Amount:    amount,
		AddedAt:   m.AddedAt.UTC(),
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	ID          string     `bson:"_id"`
	SaleID      string     `bson:"sale_id"`
	Amount      moneyModel `bson:"amount"`
	Installment int        `bson:"installment"`
	PaidAt      time.Time  `bson:"paid_at"`
	Cancelled   bool       `bson:"cancelled"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty"`
}

func toPaymentModel(p *sale.Payment) (*paymentModel, error) {
	amount, err := toMoneyModel(p.Amount)
	if err != nil {
		return nil, err
	}
	return &paymentModel{
		ID:          p.ID.String(),
		SaleID:      p.SaleID.String(),
		Amount:      amount,
		Installment: p.Installment,
		PaidAt:      p.PaidAt,
		Cancelled:   p.Cancelled,
		CancelledAt: p.CancelledAt,
	}, nil
}

func fromPaymentModel(m *paymentModel) (*sale.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	saleID, err := id.ParseSaleID(m.SaleID)
	if err != nil {
		return nil, err
	}
	amount, err := fromMoneyModel(m.Amount)
	if err != nil {
		return nil, err
	}
	return &sale.Payment{
		ID:          paymentID,
		SaleID:      saleID,
		Amount:      amount,
		Installment: m.Installment,
		PaidAt:      m.PaidAt.UTC(),
		Cancelled:   m.Cancelled,
		CancelledAt: utcPtr(m.CancelledAt),
	}, nil
}

// ==================== Helpers ====================

func toMoneyModel(m types.Money) (moneyModel, error) {
	d, err := bson.ParseDecimal128(m.Amount.String())
	if err != nil {
		return moneyModel{}, err
	}
	return moneyModel{Amount: d, Currency: m.Currency}, nil
}

func fromMoneyModel(m moneyModel) (types.Money, error) {
	d, err := decimal.NewFromString(m.Amount.String())
	if err != nil {
		return types.Money{}, err
	}
	return types.New(d, m.Currency), nil
}

func entity(createdAt, updatedAt time.Time) types.Entity {
	return types.Entity{CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
