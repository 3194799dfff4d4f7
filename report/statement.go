package report

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/cahiers"
)

// Sheet names.
const (
	StatementSheet  = "Récapitulatif"
	ComparisonSheet = "Comparatif"
)

// Statement lays out the sales recap of one school.
func Statement(stmt *cahiers.Statement) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f, stmt.Totals.Total)
	if err != nil {
		return nil, err
	}

	s := newSheet(f, StatementSheet, st)
	s.widths(14, 14, 14, 16, 16, 16, 12, 12, 40)

	s.line(cell{value: "Récapitulatif des ventes", style: st.title})
	s.line(s.label("École"), text(stmt.School.Name))
	s.line(s.label("Édité le"), s.date(stmt.GeneratedAt))
	s.skip()

	s.headers("Année", "Date", "Échéance", "Total", "Payé", "Reste", "Statut", "Versements", "Dates de paiement")
	for _, r := range stmt.Rows {
		s.line(
			text(r.SchoolYear),
			s.date(r.CreatedAt),
			s.date(r.DueDate),
			s.money(r.Total),
			s.money(r.Paid),
			s.money(r.Remaining),
			text(StatusLabel(r.Status)),
			cell{value: r.Installments},
			text(joinDates(r.PaymentDates)),
		)
	}
	s.line(s.label("Total"), cell{}, cell{}, s.total(stmt.Totals.Total), s.total(stmt.Totals.Paid), s.total(stmt.Totals.Remaining))
	s.skip()
	s.line(s.label("Ventes en retard"), cell{value: stmt.OverdueCount})

	return finish(f, s)
}

// YearComparison lays out one row per school year, in the order given.
func YearComparison(years []cahiers.YearSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	var currency cahiers.Money
	if len(years) > 0 {
		currency = years[0].SalesTotal
	}
	st, err := newStyles(f, currency)
	if err != nil {
		return nil, err
	}

	s := newSheet(f, ComparisonSheet, st)
	s.widths(14, 18, 18, 18, 12, 16, 14)

	s.line(cell{value: "Comparatif des années scolaires", style: st.title})
	s.skip()
	s.headers("Année", "Ventes", "Encaissé", "Reste", "Nb ventes", "Écoles actives", "Recouvrement (%)")
	for _, y := range years {
		s.line(
			text(y.SchoolYear.Label()),
			s.money(y.SalesTotal),
			s.money(y.PaidTotal),
			s.money(y.Remaining),
			cell{value: y.SaleCount},
			cell{value: y.ActiveSchools},
			cell{value: y.RecoveryRate},
		)
	}

	return finish(f, s)
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(dateLayout)
	}
	return strings.Join(parts, ", ")
}
