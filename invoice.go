package cahiers

import (
	"context"
	"fmt"
	"io"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/invoice"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
)

// InvoiceSnapshot assembles the printable view of a sale: its lines grouped
// into delivery sessions, its payments, its balance and the debt the school
// still carries on its other sales.
func (l *Ledger) InvoiceSnapshot(ctx context.Context, saleID id.SaleID) (*invoice.Snapshot, error) {
	s, err := l.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if len(s.Lines) == 0 {
		return nil, ErrInvoiceEmpty
	}

	sc, err := l.store.GetSchool(ctx, s.SchoolID)
	if err != nil {
		return nil, err
	}
	y, err := l.store.GetSchoolYear(ctx, s.SchoolYearID)
	if err != nil {
		return nil, err
	}
	prior, err := schoolDebt(ctx, l.store, s.SchoolID, s.ID)
	if err != nil {
		return nil, err
	}

	now := l.clock()
	bal := reconcile.BalanceOf(s)
	snap := &invoice.Snapshot{
		Number:           invoice.Number(s.ID, s.CreatedAt),
		IssuedAt:         now,
		Sale:             *s,
		School:           *sc,
		SchoolYear:       *y,
		Lines:            s.Lines,
		Payments:         s.Payments,
		Sessions:         reconcile.GroupSessions(s.Lines, l.sessionPolicy),
		Balance:          bal,
		Status:           reconcile.StatusOf(bal, s.DueDate, now),
		InstallmentsLeft: sale.MaxInstallments - reconcile.ActiveInstallments(s.Payments),
		PriorDebt:        prior,
	}

	l.plugins.EmitInvoiceBuilt(ctx, snap)
	return snap, nil
}

// RenderInvoice writes the invoice of a sale to w using the renderer
// registered for format, and returns the content type written.
func (l *Ledger) RenderInvoice(ctx context.Context, saleID id.SaleID, format string, w io.Writer) (string, error) {
	r, ok := l.plugins.Renderer(format)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRendererNotFound, format)
	}

	snap, err := l.InvoiceSnapshot(ctx, saleID)
	if err != nil {
		return "", err
	}
	if err := r.Render(ctx, snap, w); err != nil {
		l.logger.Error("invoice rendering failed", "sale_id", saleID.String(), "format", format, "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrInvoiceRenderFault, format, err)
	}
	return r.ContentType(), nil
}
