// Package schoolyear defines the accounting period used to bucket sales.
package schoolyear

import (
	"fmt"
	"time"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// StartMonth is the month a school year opens.
const StartMonth = time.July

// SchoolYear runs from 1 July of StartYear to 30 June of StartYear+1.
// At most one school year is active at a time.
type SchoolYear struct {
	types.Entity
	ID        id.SchoolYearID `json:"id"`
	StartYear int             `json:"start_year"`
	EndYear   int             `json:"end_year"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	IsActive  bool            `json:"is_active"`
}

// New builds an inactive school year starting in July of startYear.
func New(startYear int) *SchoolYear {
	return &SchoolYear{
		Entity:    types.NewEntity(),
		ID:        id.NewSchoolYearID(),
		StartYear: startYear,
		EndYear:   startYear + 1,
		StartDate: time.Date(startYear, StartMonth, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
}

// Label formats the year as "2024-2025".
func (y SchoolYear) Label() string {
	return fmt.Sprintf("%d-%d", y.StartYear, y.EndYear)
}

// Contains reports whether t falls within the school year, both ends included.
func (y SchoolYear) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(y.StartDate) && !d.After(y.EndDate)
}

// StartYearFor returns the start year of the school year containing t.
// From July onward a new school year has begun.
func StartYearFor(t time.Time) int {
	if t.Month() >= StartMonth {
		return t.Year()
	}
	return t.Year() - 1
}
