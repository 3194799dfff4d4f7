package cahiers

import (
	"context"
	"errors"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/schoolyear"
	"github.com/xraph/cahiers/store"
	"github.com/xraph/cahiers/types"
)

// ──────────────────────────────────────────────────
// School years
// ──────────────────────────────────────────────────

// CreateSchoolYear opens the school year starting in July of startYear.
// The new year is inactive until ActivateSchoolYear is called.
func (l *Ledger) CreateSchoolYear(ctx context.Context, startYear int) (*schoolyear.SchoolYear, error) {
	if startYear < 1900 || startYear > 9998 {
		return nil, ValidationError{Field: "start_year", Message: "out of range"}
	}

	y := schoolyear.New(startYear)
	y.Entity = types.NewEntityAt(l.clock())
	if err := l.store.CreateSchoolYear(ctx, y); err != nil {
		return nil, err
	}

	l.plugins.EmitSchoolYearCreated(ctx, y)
	return y, nil
}

// GetSchoolYear retrieves a school year by ID.
func (l *Ledger) GetSchoolYear(ctx context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error) {
	return l.store.GetSchoolYear(ctx, yearID)
}

// ListSchoolYears returns every school year, most recent first.
func (l *Ledger) ListSchoolYears(ctx context.Context) ([]*schoolyear.SchoolYear, error) {
	return l.store.ListSchoolYears(ctx)
}

// ActivateSchoolYear makes a school year the current one and deactivates
// every other year in the same transaction.
func (l *Ledger) ActivateSchoolYear(ctx context.Context, yearID id.SchoolYearID) (*schoolyear.SchoolYear, error) {
	var y *schoolyear.SchoolYear
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.ActivateSchoolYear(ctx, yearID); err != nil {
			return err
		}
		var err error
		y, err = tx.GetSchoolYear(ctx, yearID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("school year activated", "school_year", y.Label())
	l.plugins.EmitSchoolYearActivated(ctx, y)
	return y, nil
}

// CurrentSchoolYear returns the active school year, or ErrNoActiveSchoolYear.
func (l *Ledger) CurrentSchoolYear(ctx context.Context) (*schoolyear.SchoolYear, error) {
	return l.store.GetActiveSchoolYear(ctx)
}

// EnsureCurrentSchoolYear returns the active school year. When none is
// active, the school year containing today is created if needed and activated.
func (l *Ledger) EnsureCurrentSchoolYear(ctx context.Context) (*schoolyear.SchoolYear, error) {
	var (
		y       *schoolyear.SchoolYear
		created bool
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		y, created, err = l.ensureCurrentYear(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		l.plugins.EmitSchoolYearCreated(ctx, y)
		l.plugins.EmitSchoolYearActivated(ctx, y)
	}
	return y, nil
}

func (l *Ledger) ensureCurrentYear(ctx context.Context, tx store.Store) (*schoolyear.SchoolYear, bool, error) {
	active, err := tx.GetActiveSchoolYear(ctx)
	if err == nil {
		return active, false, nil
	}
	if !errors.Is(err, ErrNoActiveSchoolYear) {
		return nil, false, err
	}

	now := l.clock()
	startYear := schoolyear.StartYearFor(now)

	y, err := tx.GetSchoolYearByStart(ctx, startYear)
	created := false
	switch {
	case errors.Is(err, ErrSchoolYearNotFound):
		y = schoolyear.New(startYear)
		y.Entity = types.NewEntityAt(now)
		if err := tx.CreateSchoolYear(ctx, y); err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, err
	}

	if err := tx.ActivateSchoolYear(ctx, y.ID); err != nil {
		return nil, false, err
	}
	y.IsActive = true

	l.logger.Info("school year opened automatically", "school_year", y.Label(), "created", created)
	return y, created, nil
}
