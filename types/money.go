// Package types provides common types used across the ledger.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the CFA franc, the currency schools are invoiced in.
const DefaultCurrency = "xof"

// Money represents an exact monetary value. Amounts are decimal, never
// floating point, and carry a lowercase ISO 4217 currency code.
//
// A Money with an empty currency is an untyped amount (the zero value is
// the canonical example): arithmetic with it adopts the other operand's
// currency, so accumulators can start from Money{}.
//
// Examples:
//   - XOF(1500) = 1500 F
//   - EUR(decimal.RequireFromString("12.50")) = €12.50
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New creates a Money value from a decimal amount.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// FromInt creates a Money value from a whole number of major units.
func FromInt(units int64, currency string) Money {
	return New(decimal.NewFromInt(units), currency)
}

// Parse reads a decimal string such as "1500" or "12.50".
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return New(d, currency), nil
}

// MustParse is like Parse but panics on error. Use for literals.
func MustParse(s, currency string) Money {
	m, err := Parse(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// XOF creates a Money value in CFA francs (no minor unit).
func XOF(units int64) Money { return FromInt(units, "xof") }

// EUR creates a Money value in euros.
func EUR(amount decimal.Decimal) Money { return New(amount, "eur") }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return New(decimal.Zero, currency) }

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	cur := m.commonCurrency(other)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: cur}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	cur := m.commonCurrency(other)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: cur}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// ClampZero returns m, or zero when m is negative.
func (m Money) ClampZero() Money {
	if m.Amount.IsNegative() {
		return Money{Amount: decimal.Zero, Currency: m.Currency}
	}
	return m
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal returns true if both amounts are numerically equal and the
// currencies are compatible.
func (m Money) Equal(other Money) bool {
	if m.Currency != "" && other.Currency != "" && m.Currency != other.Currency {
		return false
	}
	return m.Amount.Equal(other.Amount)
}

// Cmp compares two Money values. Panics if currencies don't match.
func (m Money) Cmp(other Money) int {
	m.commonCurrency(other)
	return m.Amount.Cmp(other.Amount)
}

// LessThan returns true if this Money is less than other.
func (m Money) LessThan(other Money) bool { return m.Cmp(other) < 0 }

// GreaterThan returns true if this Money is greater than other.
func (m Money) GreaterThan(other Money) bool { return m.Cmp(other) > 0 }

// Min returns the smaller of two Money values.
func (m Money) Min(other Money) Money {
	cur := m.commonCurrency(other)
	if m.Amount.LessThan(other.Amount) {
		return Money{Amount: m.Amount, Currency: cur}
	}
	return Money{Amount: other.Amount, Currency: cur}
}

// Max returns the larger of two Money values.
func (m Money) Max(other Money) Money {
	cur := m.commonCurrency(other)
	if m.Amount.GreaterThan(other.Amount) {
		return Money{Amount: m.Amount, Currency: cur}
	}
	return Money{Amount: other.Amount, Currency: cur}
}

// In returns m tagged with currency when it has none.
func (m Money) In(currency string) Money {
	if m.Currency == "" {
		m.Currency = strings.ToLower(currency)
	}
	return m
}

// Formatting methods

// FormatMajor returns the amount with the currency's decimal places and no symbol.
// "1500" for XOF(1500), "12.50" for EUR(12.5).
func (m Money) FormatMajor() string {
	return m.Amount.StringFixed(currencyDecimals(m.Currency))
}

// Decimals returns the number of minor digits of the money's currency.
func (m Money) Decimals() int32 {
	return currencyDecimals(m.Currency)
}

// Symbol returns the currency symbol, "F" for XOF.
func (m Money) Symbol() string {
	sym, _ := currencySymbol(m.Currency)
	return sym
}

// String returns a human-readable string with currency symbol.
// Examples: "1500 F", "€12.50", "$49.00"
func (m Money) String() string {
	sym, suffix := currencySymbol(m.Currency)
	if suffix {
		return m.FormatMajor() + " " + sym
	}
	return sym + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.FormatMajor(),
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = New(raw.Amount, raw.Currency)
	return nil
}

// Helper functions

// commonCurrency returns the currency of the result of a binary operation.
// Panics if both currencies are set and differ.
func (m Money) commonCurrency(other Money) string {
	switch {
	case m.Currency == "":
		return other.Currency
	case other.Currency == "" || m.Currency == other.Currency:
		return m.Currency
	default:
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code and whether it is
// written after the amount.
func currencySymbol(currency string) (string, bool) {
	switch strings.ToLower(currency) {
	case "xof", "xaf":
		return "F", true
	case "eur":
		return "€", false
	case "usd":
		return "$", false
	case "gbp":
		return "£", false
	case "":
		return "", false
	}
	return strings.ToUpper(currency), true
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int32 {
	switch strings.ToLower(currency) {
	case "xof", "xaf", "jpy", "krw", "gnf", "vnd":
		return 0
	}
	return 2
}

// Sum calculates the sum of multiple Money values. All must share a currency.
func Sum(values ...Money) Money {
	var result Money
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
