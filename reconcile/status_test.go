package reconcile

import (
	"testing"
	"time"

	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

func TestStatusOf(t *testing.T) {
	due := time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC)
	open := Balance{Total: types.XOF(100), Remaining: types.XOF(100)}
	closed := Balance{Total: types.XOF(100), Paid: types.XOF(100), Remaining: types.XOF(0)}

	tests := []struct {
		name string
		b    Balance
		now  time.Time
		want sale.Status
	}{
		{"Settled before due", closed, due.Add(-24 * time.Hour), sale.StatusSettled},
		{"Settled after due", closed, due.Add(72 * time.Hour), sale.StatusSettled},
		{"Due day itself", open, due.Add(20 * time.Hour), sale.StatusInProgress},
		{"Day after due", open, due.Add(25 * time.Hour), sale.StatusOverdue},
		{"Before due", open, due.Add(-48 * time.Hour), sale.StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.b, due, tt.now); got != tt.want {
				t.Errorf("StatusOf: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDueWithin(t *testing.T) {
	now := time.Date(2024, time.October, 1, 8, 0, 0, 0, time.UTC)
	open := Balance{Total: types.XOF(100), Remaining: types.XOF(100)}
	week := 7 * 24 * time.Hour

	if !DueWithin(open, now.AddDate(0, 0, 7), now, week) {
		t.Error("due in 7 days should be within a week")
	}
	if DueWithin(open, now.AddDate(0, 0, 8), now, week) {
		t.Error("due in 8 days should not be within a week")
	}
	if DueWithin(open, now.AddDate(0, 0, -1), now, week) {
		t.Error("already overdue sales are not upcoming")
	}
	if DueWithin(Balance{}, now, now, week) {
		t.Error("settled sales are never upcoming")
	}
}
