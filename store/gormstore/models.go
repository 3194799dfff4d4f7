package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/types"
)

// ==================== School year models ====================

type schoolYearModel struct {
	ID        string    `gorm:"primaryKey;size:40"`
	StartYear int       `gorm:"uniqueIndex;not null"`
	EndYear   int       `gorm:"not null"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	IsActive  bool      `gorm:"index;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (schoolYearModel) TableName() string { return "cahiers_school_years" }

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
	ID             string    `gorm:"primaryKey;size:40"`
	Name           string    `gorm:"size:200;index;not null"`
	Address        string    `gorm:"size:500"`
	Representative string    `gorm:"size:200"`
	Phone          string    `gorm:"size:40"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (schoolModel) TableName() string { return "cahiers_schools" }

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

type itemModel struct {
	ID            string          `gorm:"primaryKey;size:40"`
	Title         string          `gorm:"size:200;index;not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency      string          `gorm:"size:3;not null"`
	StockQuantity int64           `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime:false"`
}

func (itemModel) TableName() string { return "cahiers_items" }

func toItemModel(it *item.Item) *itemModel {
	return &itemModel{
		ID:            it.ID.String(),
		Title:         it.Title,
		UnitPrice:     it.UnitPrice.Amount,
		Currency:      it.UnitPrice.Currency,
		StockQuantity: it.StockQuantity,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}

func fromItemModel(m *itemModel) (*item.Item, error) {
	itemID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, err
	}
	return &item.Item{
		Entity:        entity(m.CreatedAt, m.UpdatedAt),
		ID:            itemID,
		Title:         m.Title,
		UnitPrice:     types.New(m.UnitPrice, m.Currency),
		StockQuantity: m.StockQuantity,
	}, nil
}

// ==================== Sale models ====================

type saleModel struct {
	ID               string    `gorm:"primaryKey;size:40"`
	SchoolID         string    `gorm:"size:40;index;not null"`
	SchoolYearID     string    `gorm:"size:40;index;not null"`
	DueDate          time.Time `gorm:"index;not null"`
	ModifiedAt       *time.Time
	LastModification string    `gorm:"size:32"`
	CreatedAt        time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (saleModel) TableName() string { return "cahiers_sales" }

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
	ID        string          `gorm:"primaryKey;size:40"`
	SaleID    string          `gorm:"size:40;index;not null"`
	ItemID    string          `gorm:"size:40;index;not null"`
	ItemTitle string          `gorm:"size:200;not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Quantity  int64           `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency  string          `gorm:"size:3;not null"`
	AddedAt   time.Time       `gorm:"not null"`
}

func (lineItemModel) TableName() string { return "cahiers_line_items" }

func toLineItemModel(l *sale.LineItem) *lineItemModel {
	return &lineItemModel{
		ID:        l.ID.String(),
		SaleID:    l.SaleID.String(),
		ItemID:    l.ItemID.String(),
		ItemTitle: l.ItemTitle,
		UnitPrice: l.UnitPrice.Amount,
		Quantity:  l.Quantity,
		Amount:    l.Amount.Amount,
		Currency:  l.Amount.Currency,
		AddedAt:   l.AddedAt,
	}
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
	return &sale.LineItem{
		ID:        lineID,
		SaleID:    saleID,
		ItemID:    itemID,
		ItemTitle: m.ItemTitle,
		UnitPrice: types.New(m.UnitPrice, m.Currency),
		Quantity:  m.Quantity,
		Amount:    types.New(m.Amount, m.Currency),
		AddedAt:   m.AddedAt.UTC(),
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	ID          string          `gorm:"primaryKey;size:40"`
	SaleID      string          `gorm:"size:40;index;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency    string          `gorm:"size:3;not null"`
	Installment int             `gorm:"not null"`
	PaidAt      time.Time       `gorm:"not null"`
	Cancelled   bool            `gorm:"not null;default:false"`
	CancelledAt *time.Time
}

func (paymentModel) TableName() string { return "cahiers_payments" }

func toPaymentModel(p *sale.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		SaleID:      p.SaleID.String(),
		Amount:      p.Amount.Amount,
		Currency:    p.Amount.Currency,
		Installment: p.Installment,
		PaidAt:      p.PaidAt,
		Cancelled:   p.Cancelled,
		CancelledAt: p.CancelledAt,
	}
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
	return &sale.Payment{
		ID:          paymentID,
		SaleID:      saleID,
		Amount:      types.New(m.Amount, m.Currency),
		Installment: m.Installment,
		PaidAt:      m.PaidAt.UTC(),
		Cancelled:   m.Cancelled,
		CancelledAt: utcPtr(m.CancelledAt),
	}, nil
}

// ==================== Helpers ====================

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

// fromModels converts a slice of rows with the given mapper.
func fromModels[M, E any](rows []M, from func(*M) (*E, error)) ([]*E, error) {
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

func idStrings(ids []id.ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
