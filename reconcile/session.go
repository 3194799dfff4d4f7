package reconcile

import (
	"iter"
	"slices"
	"time"

	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

// SessionPolicy decides how far apart two line additions may be and still
// belong to the same invoice session.
type SessionPolicy struct {
	// Tolerance fixes the window. Zero picks one from the gaps below.
	Tolerance time.Duration `json:"tolerance" yaml:"tolerance" mapstructure:"tolerance"`

	LongGap         time.Duration `json:"long_gap" yaml:"long_gap" mapstructure:"long_gap"`
	LongTolerance   time.Duration `json:"long_tolerance" yaml:"long_tolerance" mapstructure:"long_tolerance"`
	MediumGap       time.Duration `json:"medium_gap" yaml:"medium_gap" mapstructure:"medium_gap"`
	MediumTolerance time.Duration `json:"medium_tolerance" yaml:"medium_tolerance" mapstructure:"medium_tolerance"`
	ShortTolerance  time.Duration `json:"short_tolerance" yaml:"short_tolerance" mapstructure:"short_tolerance"`
}

// DefaultSessionPolicy detects the tolerance automatically: 20 minutes when
// some gap exceeds an hour, 10 minutes when some gap exceeds 15 minutes,
// 5 minutes otherwise.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		LongGap:         60 * time.Minute,
		LongTolerance:   20 * time.Minute,
		MediumGap:       15 * time.Minute,
		MediumTolerance: 10 * time.Minute,
		ShortTolerance:  5 * time.Minute,
	}
}

// ToleranceFor returns the window to use for timestamps sorted ascending.
func (p SessionPolicy) ToleranceFor(sorted []time.Time) time.Duration {
	if p.Tolerance > 0 {
		return p.Tolerance
	}

	var widest time.Duration
	for i := 1; i < len(sorted); i++ {
		widest = max(widest, sorted[i].Sub(sorted[i-1]))
	}

	switch {
	case widest > p.LongGap:
		return p.LongTolerance
	case widest > p.MediumGap:
		return p.MediumTolerance
	default:
		return p.ShortTolerance
	}
}

// Session is a run of lines added close together.
type Session struct {
	Start    time.Time       `json:"start"`
	Lines    []sale.LineItem `json:"lines"`
	Amount   types.Money     `json:"amount"`
	Quantity int64           `json:"quantity"`
}

// Sessions partitions lines by AddedAt. A gap strictly wider than the
// tolerance opens a new session. The sequence can be ranged over any
// number of times and always yields the same sessions.
func Sessions(lines []sale.LineItem, policy SessionPolicy) iter.Seq[Session] {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b sale.LineItem) int {
		return a.AddedAt.Compare(b.AddedAt)
	})

	stamps := make([]time.Time, len(sorted))
	for i, l := range sorted {
		stamps[i] = l.AddedAt
	}
	tolerance := policy.ToleranceFor(stamps)

	return func(yield func(Session) bool) {
		var cur *Session
		for i, l := range sorted {
			if cur != nil && l.AddedAt.Sub(sorted[i-1].AddedAt) > tolerance {
				if !yield(*cur) {
					return
				}
				cur = nil
			}
			if cur == nil {
				cur = &Session{Start: l.AddedAt}
			}
			cur.Lines = append(cur.Lines, l)
			cur.Amount = cur.Amount.Add(l.Amount)
			cur.Quantity += l.Quantity
		}
		if cur != nil {
			yield(*cur)
		}
	}
}

// GroupSessions collects Sessions into a slice.
func GroupSessions(lines []sale.LineItem, policy SessionPolicy) []Session {
	return slices.Collect(Sessions(lines, policy))
}
