package cahiers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/types"
)

// YearSummary is the sales activity of one school year.
type YearSummary struct {
	SchoolYear    schoolyear.SchoolYear `json:"school_year"`
	SalesTotal    types.Money           `json:"sales_total"`
	PaidTotal     types.Money           `json:"paid_total"`
	Remaining     types.Money           `json:"remaining"`
	SaleCount     int                   `json:"sale_count"`
	ActiveSchools int                   `json:"active_schools"`
	// RecoveryRate is the paid share of sales in percent, one decimal.
	RecoveryRate float64 `json:"recovery_rate"`
}

// StatementRow is one sale on a school statement.
type StatementRow struct {
	SaleID       id.SaleID   `json:"sale_id"`
	SchoolYear   string      `json:"school_year"`
	CreatedAt    time.Time   `json:"created_at"`
	DueDate      time.Time   `json:"due_date"`
	Total        types.Money `json:"total"`
	Paid         types.Money `json:"paid"`
	Remaining    types.Money `json:"remaining"`
	Status       sale.Status `json:"status"`
	Installments int         `json:"installments"`
	PaymentDates []time.Time `json:"payment_dates"`
}

// Statement recaps every sale made to a school.
type Statement struct {
	School       school.School     `json:"school"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Rows         []StatementRow    `json:"rows"`
	Totals       reconcile.Balance `json:"totals"`
	OverdueCount int               `json:"overdue_count"`
}

// DueSale is an unsettled sale with its computed position, used for
// payment reminders.
type DueSale struct {
	Sale    *sale.Sale        `json:"sale"`
	Balance reconcile.Balance `json:"balance"`
	Status  sale.Status       `json:"status"`
	// Days is how many days remain before the due date, negative once overdue.
	Days int `json:"days"`
}

// YearSummary totals the sales of a school year.
func (l *Ledger) YearSummary(ctx context.Context, yearID id.SchoolYearID) (*YearSummary, error) {
	y, err := l.store.GetSchoolYear(ctx, yearID)
	if err != nil {
		return nil, err
	}
	sales, err := l.ListSales(ctx, sale.ListOpts{SchoolYearID: yearID})
	if err != nil {
		return nil, err
	}
	return l.summarize(*y, sales), nil
}

// CompareYears summarizes the last n school years, most recent first.
// n <= 0 summarizes every year.
func (l *Ledger) CompareYears(ctx context.Context, n int) ([]YearSummary, error) {
	years, err := l.store.ListSchoolYears(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(years) > n {
		years = years[:n]
	}

	out := make([]YearSummary, 0, len(years))
	for _, y := range years {
		sales, err := l.ListSales(ctx, sale.ListOpts{SchoolYearID: y.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, *l.summarize(*y, sales))
	}
	return out, nil
}

func (l *Ledger) summarize(y schoolyear.SchoolYear, sales []*sale.Sale) *YearSummary {
	sum := &YearSummary{
		SchoolYear: y,
		SalesTotal: types.Zero(l.currency),
		PaidTotal:  types.Zero(l.currency),
		Remaining:  types.Zero(l.currency),
		SaleCount:  len(sales),
	}
	schools := make(map[id.SchoolID]struct{})
	for _, s := range sales {
		b := reconcile.BalanceOf(s)
		sum.SalesTotal = sum.SalesTotal.Add(b.Total)
		sum.PaidTotal = sum.PaidTotal.Add(b.Paid)
		sum.Remaining = sum.Remaining.Add(b.Remaining)
		schools[s.SchoolID] = struct{}{}
	}
	sum.ActiveSchools = len(schools)
	sum.RecoveryRate = percent(sum.PaidTotal, sum.SalesTotal)
	return sum
}

func percent(part, whole types.Money) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Amount.Mul(decimal.NewFromInt(100)).Div(whole.Amount).Round(1).Float64()
	return f
}

// SchoolStatement lists every sale of a school with its balance and status
// as of now.
func (l *Ledger) SchoolStatement(ctx context.Context, schoolID id.SchoolID, now time.Time) (*Statement, error) {
	sc, err := l.store.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	sales, err := l.ListSales(ctx, sale.ListOpts{SchoolID: schoolID})
	if err != nil {
		return nil, err
	}
	years, err := yearIndex(ctx, l.store)
	if err != nil {
		return nil, err
	}

	zero := types.Zero(l.currency)
	st := &Statement{
		School:      *sc,
		GeneratedAt: now.UTC(),
		Rows:        make([]StatementRow, 0, len(sales)),
		Totals:      reconcile.Balance{Total: zero, Paid: zero, Remaining: zero},
	}
	for _, s := range sales {
		b := reconcile.BalanceOf(s)
		row := StatementRow{
			SaleID:       s.ID,
			SchoolYear:   years[s.SchoolYearID].Label(),
			CreatedAt:    s.CreatedAt,
			DueDate:      s.DueDate,
			Total:        b.Total,
			Paid:         b.Paid,
			Remaining:    b.Remaining,
			Status:       reconcile.StatusOf(b, s.DueDate, now),
			Installments: reconcile.ActiveInstallments(s.Payments),
		}
		for _, p := range s.Payments {
			if !p.Cancelled {
				row.PaymentDates = append(row.PaymentDates, p.PaidAt)
			}
		}
		if row.Status == sale.StatusOverdue {
			st.OverdueCount++
		}
		st.Rows = append(st.Rows, row)

		st.Totals.Total = st.Totals.Total.Add(b.Total)
		st.Totals.Paid = st.Totals.Paid.Add(b.Paid)
		st.Totals.Remaining = st.Totals.Remaining.Add(b.Remaining)
	}
	return st, nil
}

// OverdueSales returns the unsettled sales whose due date has passed.
func (l *Ledger) OverdueSales(ctx context.Context, now time.Time) ([]DueSale, error) {
	today := startOfDay(now)
	sales, err := l.ListSales(ctx, sale.ListOpts{DueBefore: &today})
	if err != nil {
		return nil, err
	}

	out := make([]DueSale, 0)
	for _, s := range sales {
		b := reconcile.BalanceOf(s)
		if reconcile.StatusOf(b, s.DueDate, now) != sale.StatusOverdue {
			continue
		}
		out = append(out, DueSale{Sale: s, Balance: b, Status: sale.StatusOverdue, Days: daysUntil(now, s.DueDate)})
	}
	return out, nil
}

// UpcomingDueSales returns the unsettled sales falling due between today
// and today+within. A non-positive within uses the configured reminder window.
func (l *Ledger) UpcomingDueSales(ctx context.Context, now time.Time, within time.Duration) ([]DueSale, error) {
	if within <= 0 {
		within = l.reminderWindow
	}
	limit := startOfDay(now.Add(within)).AddDate(0, 0, 1)
	sales, err := l.ListSales(ctx, sale.ListOpts{DueBefore: &limit})
	if err != nil {
		return nil, err
	}

	out := make([]DueSale, 0)
	for _, s := range sales {
		b := reconcile.BalanceOf(s)
		if !reconcile.DueWithin(b, s.DueDate, now, within) {
			continue
		}
		out = append(out, DueSale{Sale: s, Balance: b, Status: sale.StatusInProgress, Days: daysUntil(now, s.DueDate)})
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysUntil(now, due time.Time) int {
	return int(startOfDay(due).Sub(startOfDay(now)).Hours() / 24)
}
