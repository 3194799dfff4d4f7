package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func eur(s string) Money { return MustParse(s, "eur") }

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   string
		currency string
		display  string
	}{
		{"XOF", XOF(1500), "1500", "xof", "1500 F"},
		{"EUR", eur("12.5"), "12.5", "eur", "€12.50"},
		{"FromInt upper", FromInt(300, "XOF"), "300", "xof", "300 F"},
		{"Zero XOF", Zero("XOF"), "0", "xof", "0 F"},
		{"Zero EUR", Zero("eur"), "0", "eur", "€0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.money.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("Amount: got %s, want %s", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyParse(t *testing.T) {
	if _, err := Parse("abc", "xof"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
	m, err := Parse(" 250.75 ", "EUR")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.Equal(eur("250.75")) {
		t.Errorf("Parse: got %v, want €250.75", m)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return XOF(100).Add(XOF(200)) }, XOF(300)},
		{"Subtract", func() Money { return XOF(500).Subtract(XOF(200)) }, XOF(300)},
		{"Multiply", func() Money { return XOF(100).Multiply(3) }, XOF(300)},
		{"Negate", func() Money { return XOF(100).Negate() }, XOF(-100)},
		{"ClampZero negative", func() Money { return XOF(-100).ClampZero() }, XOF(0)},
		{"ClampZero positive", func() Money { return XOF(100).ClampZero() }, XOF(100)},
		{"Decimal add", func() Money { return eur("0.1").Add(eur("0.2")) }, eur("0.3")},
		{"Untyped adopts", func() Money { return Money{}.Add(XOF(40)) }, XOF(40)},
		{"Complex", func() Money {
			return XOF(1000).Add(XOF(500)).Multiply(2).Subtract(XOF(1000))
		}, XOF(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
			if result.Currency != tt.expected.Currency {
				t.Errorf("Currency: got %q, want %q", result.Currency, tt.expected.Currency)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = XOF(100).Add(eur("100"))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", XOF(100), XOF(100), false, false, true},
		{"Less", XOF(50), XOF(100), true, false, false},
		{"Greater", XOF(200), XOF(100), false, true, false},
		{"Zero equal", XOF(0), Zero("xof"), false, false, true},
		{"Scale insensitive", eur("1.50"), eur("1.5"), false, false, true},
		{"Negative less", XOF(-100), XOF(100), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyMinMax(t *testing.T) {
	if got := XOF(300).Min(XOF(200)); !got.Equal(XOF(200)) {
		t.Errorf("Min: got %v, want 200", got)
	}
	if got := XOF(300).Max(XOF(200)); !got.Equal(XOF(300)) {
		t.Errorf("Max: got %v, want 300", got)
	}
	if got := (Money{}).Min(XOF(5)); got.Currency != "xof" {
		t.Errorf("Min currency: got %q, want xof", got.Currency)
	}
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", XOF(0), true, false, false},
		{"Positive", XOF(100), false, true, false},
		{"Negative", XOF(-100), false, false, true},
		{"Untyped zero", Money{}, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{XOF(1500), "1500"},
		{XOF(0), "0"},
		{XOF(-40), "-40"},
		{eur("49"), "49.00"},
		{eur("0.01"), "0.01"},
		{eur("-12.3"), "-12.30"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	m := XOF(4900)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":"4900","currency":"xof","display":"4900 F"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !back.Equal(m) || back.Currency != "xof" {
		t.Errorf("Unmarshaled: got %v, want %v", back, m)
	}

	var fromNumber Money
	if err := json.Unmarshal([]byte(`{"amount":12.5,"currency":"EUR"}`), &fromNumber); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if !fromNumber.Equal(eur("12.5")) {
		t.Errorf("Unmarshal number: got %v", fromNumber)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Money{}},
		{"Single", []Money{XOF(100)}, XOF(100)},
		{"Multiple", []Money{XOF(100), XOF(200), XOF(300)}, XOF(600)},
		{"With negatives", []Money{XOF(100), XOF(-50), XOF(200)}, XOF(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum(tt.values...)
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCurrencySymbols(t *testing.T) {
	tests := []struct {
		currency string
		symbol   string
		suffix   bool
	}{
		{"xof", "F", true},
		{"eur", "€", false},
		{"usd", "$", false},
		{"ghs", "GHS", true},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			sym, suffix := currencySymbol(tt.currency)
			if sym != tt.symbol || suffix != tt.suffix {
				t.Errorf("Symbol for %s: got (%s, %v), want (%s, %v)", tt.currency, sym, suffix, tt.symbol, tt.suffix)
			}
		})
	}
}

func BenchmarkMoneyAdd(b *testing.B) {
	m1 := XOF(100)
	m2 := XOF(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m1.Add(m2)
	}
}

func BenchmarkMoneyJSON(b *testing.B) {
	m := XOF(4900)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = json.Marshal(m)
	}
}
