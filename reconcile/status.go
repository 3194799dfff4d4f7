package reconcile

import (
	"time"

	"github.com/xraph/cahiers/sale"
)

// StatusOf derives the collection status of a sale. A sale is overdue once
// the calendar day of now is after its due date and something remains.
func StatusOf(b Balance, due, now time.Time) sale.Status {
	switch {
	case b.Settled():
		return sale.StatusSettled
	case dayOf(now).After(dayOf(due)):
		return sale.StatusOverdue
	default:
		return sale.StatusInProgress
	}
}

// DueWithin reports whether an unsettled sale falls due between now and
// now+window, both days included.
func DueWithin(b Balance, due, now time.Time, window time.Duration) bool {
	if b.Settled() {
		return false
	}
	d := dayOf(due)
	return !d.Before(dayOf(now)) && !d.After(dayOf(now.Add(window)))
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
