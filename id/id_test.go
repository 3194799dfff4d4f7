package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/cahiers/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SchoolYearID", id.NewSchoolYearID, "sy_"},
		{"SchoolID", id.NewSchoolID, "sch_"},
		{"ItemID", id.NewItemID, "item_"},
		{"SaleID", id.NewSaleID, "sale_"},
		{"LineItemID", id.NewLineItemID, "li_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SchoolYearID", id.NewSchoolYearID, id.ParseSchoolYearID},
		{"SchoolID", id.NewSchoolID, id.ParseSchoolID},
		{"ItemID", id.NewItemID, id.ParseItemID},
		{"SaleID", id.NewSaleID, id.ParseSaleID},
		{"LineItemID", id.NewLineItemID, id.ParseLineItemID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSaleID rejects li_", id.NewLineItemID().String(), id.ParseSaleID},
		{"ParseLineItemID rejects sale_", id.NewSaleID().String(), id.ParseLineItemID},
		{"ParseItemID rejects sch_", id.NewSchoolID().String(), id.ParseItemID},
		{"ParseSchoolID rejects sy_", id.NewSchoolYearID().String(), id.ParseSchoolID},
		{"ParsePaymentID rejects item_", id.NewItemID().String(), id.ParsePaymentID},
		{"ParseSchoolYearID rejects pay_", id.NewPaymentID().String(), id.ParseSchoolYearID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Suffix() != "" {
		t.Errorf("expected empty suffix, got %q", i.Suffix())
	}
}

func TestSuffix(t *testing.T) {
	i := id.NewSaleID()
	got := i.Suffix()
	if len(got) != 26 {
		t.Fatalf("suffix length: got %d, want 26", len(got))
	}
	if "sale_"+got != i.String() {
		t.Errorf("suffix %q does not complete %q", got, i.String())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewSaleID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewPaymentID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan([]byte{}); err != nil {
		t.Fatalf("Scan(empty) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of empty bytes")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewSaleID()
	b := id.NewSaleID()
	if a == b {
		t.Errorf("two consecutive NewSaleID() calls returned the same ID: %q", a.String())
	}
}
