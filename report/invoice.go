package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/plugin"
)

// InvoiceSheet is the name of the invoice worksheet.
const InvoiceSheet = "Facture"

// Invoice lays out one invoice: header, lines grouped by delivery session,
// totals, payments and the school's debt from other sales.
func Invoice(snap *invoice.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f, snap.Balance.Total)
	if err != nil {
		return nil, err
	}

	s := newSheet(f, InvoiceSheet, st)
	s.widths(14, 34, 12, 16, 18)

	s.line(cell{value: "FACTURE " + snap.Number, style: st.title})
	s.skip()
	s.line(s.label("Date"), s.date(snap.IssuedAt))
	s.line(s.label("École"), text(snap.School.Name))
	if snap.School.Address != "" {
		s.line(s.label("Adresse"), text(snap.School.Address))
	}
	if snap.School.Representative != "" {
		s.line(s.label("Représentant"), text(snap.School.Representative))
	}
	s.line(s.label("Année scolaire"), text(snap.SchoolYear.Label()))
	s.line(s.label("Échéance"), s.date(snap.Sale.DueDate))
	if snap.Modified() {
		s.line(s.label("Modifiée le"), s.date(*snap.Sale.ModifiedAt))
	}
	s.skip()

	s.headers("Date", "Article", "Quantité", "Prix unitaire", "Montant")
	for i, sess := range snap.Sessions {
		if len(snap.Sessions) > 1 {
			s.line(s.label(fmt.Sprintf("Livraison %d", i+1)), s.date(sess.Start))
		}
		for _, l := range sess.Lines {
			s.line(s.date(l.AddedAt), text(l.ItemTitle), cell{value: l.Quantity}, s.money(l.UnitPrice), s.money(l.Amount))
		}
		if len(snap.Sessions) > 1 {
			s.line(cell{}, text("Sous-total"), cell{value: sess.Quantity}, cell{}, s.money(sess.Amount))
		}
	}
	s.skip()

	s.line(cell{}, cell{}, cell{}, s.label("Total"), s.total(snap.Balance.Total))
	s.line(cell{}, cell{}, cell{}, s.label("Payé"), s.money(snap.Balance.Paid))
	s.line(cell{}, cell{}, cell{}, s.label("Reste à payer"), s.total(snap.Balance.Remaining))
	s.line(cell{}, cell{}, cell{}, s.label("Statut"), text(StatusLabel(snap.Status)))

	if payments := snap.ActivePayments(); len(payments) > 0 {
		s.skip()
		s.headers("Versement", "Date", "Montant")
		for _, p := range payments {
			s.line(cell{value: p.Installment}, s.date(p.PaidAt), s.money(p.Amount))
		}
		s.line(s.label("Versements restants"), cell{value: snap.InstallmentsLeft})
	}

	if len(snap.PriorDebt.Years) > 0 {
		s.skip()
		s.headers("Dette antérieure", "Ventes", "Montant", "Payé", "Reste")
		for _, y := range snap.PriorDebt.Years {
			s.line(text(y.YearLabel), cell{value: y.SaleCount}, s.money(y.TotalAmount), s.money(y.Paid), s.money(y.Remaining))
		}
		s.line(s.label("Total dette"), cell{}, cell{}, cell{}, s.total(snap.PriorDebt.Total))
	}

	s.skip()
	s.line(s.label("Montant total dû"), cell{}, cell{}, cell{}, s.total(snap.AmountDue()))

	return finish(f, s)
}

// compile-time interface check
var _ plugin.InvoiceRenderer = (*InvoiceRenderer)(nil)

// InvoiceRenderer registers the XLSX invoice with a ledger under the
// "xlsx" format.
type InvoiceRenderer struct{}

// NewInvoiceRenderer returns the XLSX invoice renderer plugin.
func NewInvoiceRenderer() *InvoiceRenderer { return &InvoiceRenderer{} }

func (r *InvoiceRenderer) Name() string        { return "xlsx-invoice" }
func (r *InvoiceRenderer) Format() string      { return "xlsx" }
func (r *InvoiceRenderer) ContentType() string { return ContentType }

// Render implements plugin.InvoiceRenderer.
func (r *InvoiceRenderer) Render(ctx context.Context, snap *invoice.Snapshot, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := Invoice(snap)
	if err != nil {
		return err
	}
	return Write(f, w)
}
