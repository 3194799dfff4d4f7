package audithook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func TestRecordsPayment(t *testing.T) {
	c := &captured{}
	e := New(c.recorder())

	p := &sale.Payment{ID: id.NewPaymentID(), SaleID: id.NewSaleID(), Amount: types.XOF(1000), Installment: 2}
	if err := e.OnPaymentRecorded(context.Background(), p); err != nil {
		t.Fatalf("OnPaymentRecorded: %v", err)
	}

	if len(c.events) != 1 {
		t.Fatalf("events: got %d, want 1", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != ActionPaymentRecorded || evt.ResourceID != p.ID.String() {
		t.Errorf("event: got %s %s", evt.Action, evt.ResourceID)
	}
	if evt.Metadata["installment"] != 2 {
		t.Errorf("installment: got %v, want 2", evt.Metadata["installment"])
	}
	if evt.Metadata["amount"] != "1000 F" {
		t.Errorf("amount: got %v", evt.Metadata["amount"])
	}
}

func TestAllocationWithChangeIsPartial(t *testing.T) {
	c := &captured{}
	e := New(c.recorder())

	res := reconcile.AllocationResult{Applied: types.XOF(500), Change: types.XOF(100)}
	_ = e.OnPaymentAllocated(context.Background(), id.NewSchoolID(), res)

	if c.events[0].Outcome != OutcomePartial {
		t.Errorf("Outcome: got %s, want %s", c.events[0].Outcome, OutcomePartial)
	}
}

func TestActionFilters(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"all enabled", nil, 2},
		{"only deletions", []Option{WithEnabledActions(ActionSaleDeleted)}, 1},
		{"settlements disabled", []Option{WithDisabledActions(ActionSaleSettled)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &captured{}
			e := New(c.recorder(), tt.opts...)
			saleID := id.NewSaleID()
			_ = e.OnSaleDeleted(context.Background(), saleID)
			_ = e.OnSaleSettled(context.Background(), saleID)
			if len(c.events) != tt.want {
				t.Errorf("events: got %d, want %d", len(c.events), tt.want)
			}
		})
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	e := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := e.OnSaleDeleted(context.Background(), id.NewSaleID()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
