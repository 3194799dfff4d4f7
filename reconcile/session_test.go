package reconcile

import (
	"testing"
	"time"

	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

func TestSessionsAutoTolerance(t *testing.T) {
	t0 := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	lines := []sale.LineItem{
		line(1, 100, t0.Add(53*time.Minute)),
		line(2, 100, t0),
		line(3, 100, t0.Add(50*time.Minute)),
		line(4, 100, t0.Add(3*time.Minute)),
	}

	sessions := GroupSessions(lines, DefaultSessionPolicy())

	if len(sessions) != 2 {
		t.Fatalf("sessions: got %d, want 2", len(sessions))
	}
	if len(sessions[0].Lines) != 2 || len(sessions[1].Lines) != 2 {
		t.Errorf("session sizes: got %d and %d, want 2 and 2", len(sessions[0].Lines), len(sessions[1].Lines))
	}
	if !sessions[0].Start.Equal(t0) {
		t.Errorf("first start: got %v, want %v", sessions[0].Start, t0)
	}
	if sessions[0].Quantity != 6 || !sessions[0].Amount.Equal(types.XOF(600)) {
		t.Errorf("first session: quantity %d amount %v", sessions[0].Quantity, sessions[0].Amount)
	}
	if sessions[1].Quantity != 4 || !sessions[1].Amount.Equal(types.XOF(400)) {
		t.Errorf("second session: quantity %d amount %v", sessions[1].Quantity, sessions[1].Amount)
	}
}

func TestToleranceFor(t *testing.T) {
	t0 := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	p := DefaultSessionPolicy()

	tests := []struct {
		name string
		gaps []time.Duration
		want time.Duration
	}{
		{"Single", nil, 5 * time.Minute},
		{"Tight", []time.Duration{time.Minute, 2 * time.Minute}, 5 * time.Minute},
		{"Exactly fifteen", []time.Duration{15 * time.Minute}, 5 * time.Minute},
		{"Medium", []time.Duration{16 * time.Minute}, 10 * time.Minute},
		{"Exactly sixty", []time.Duration{60 * time.Minute}, 10 * time.Minute},
		{"Long", []time.Duration{2 * time.Hour}, 20 * time.Minute},
		{"Days", []time.Duration{48 * time.Hour, time.Minute}, 20 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamps := []time.Time{t0}
			for _, g := range tt.gaps {
				stamps = append(stamps, stamps[len(stamps)-1].Add(g))
			}
			if got := p.ToleranceFor(stamps); got != tt.want {
				t.Errorf("ToleranceFor: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionsFixedTolerance(t *testing.T) {
	t0 := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	lines := []sale.LineItem{
		line(1, 10, t0),
		line(1, 10, t0.Add(5*time.Minute)),
		line(1, 10, t0.Add(11*time.Minute)),
	}

	p := DefaultSessionPolicy()
	p.Tolerance = 5 * time.Minute

	sessions := GroupSessions(lines, p)
	if len(sessions) != 2 {
		t.Fatalf("a gap equal to the tolerance must not split: got %d sessions, want 2", len(sessions))
	}
}

func TestSessionsRestartable(t *testing.T) {
	t0 := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	lines := []sale.LineItem{line(1, 10, t0), line(1, 10, t0.Add(3*time.Hour))}

	seq := Sessions(lines, DefaultSessionPolicy())
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 2 || b != 2 {
		t.Errorf("ranges yielded %d then %d sessions, want 2 and 2", a, b)
	}

	for s := range seq {
		if len(s.Lines) != 1 {
			t.Errorf("early break session size: got %d", len(s.Lines))
		}
		break
	}
}

func TestSessionsEmpty(t *testing.T) {
	if got := GroupSessions(nil, DefaultSessionPolicy()); len(got) != 0 {
		t.Errorf("expected no sessions, got %d", len(got))
	}
}
