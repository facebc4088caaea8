// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents. Arithmetic that can produce
// fractions (VAT splitting, percentages) goes through decimal.Decimal and
// is rounded back to cents with Round2.
package core

import (
	"bytes"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// maxMoney is the largest amount whose cents fit in an int64.
var maxMoney = decimal.NewFromInt(math.MaxInt64).Shift(-2)

// Money is an amount with two decimal places stored as cents.
type Money struct {
	Cents int64
}

// NewMoney builds an amount from whole units and cents, e.g. NewMoney(12, 34) is 12.34.
func NewMoney(units, cents int64) Money {
	return Money{Cents: units*100 + cents}
}

// MoneyFromDecimal rounds d half-up to two places and returns it as Money.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: Round2(d).Shift(2).IntPart()}
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Sign is
// preserved; callers validate the range. Amounts whose cents do not fit
// in an int64 are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if r := Round2(d); r.GreaterThan(maxMoney) || r.LessThan(maxMoney.Neg()) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsPositive() bool  { return m.Cents > 0 }

// String renders the amount with exactly two decimals, e.g. "1000.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = Money{}
		return nil
	}
	v, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SplitInstallments divides net into n slices of equal cents. The last
// slice absorbs the remainder so the slices always sum to net.
func SplitInstallments(net Money, n int) []Money {
	if n <= 0 {
		return nil
	}
	base := net.Cents / int64(n)
	out := make([]Money, n)
	for i := range out {
		out[i] = Money{Cents: base}
	}
	out[n-1].Cents += net.Cents - base*int64(n)
	return out
}
