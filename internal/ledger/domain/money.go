package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

var centsPerUnit = decimal.NewFromInt(100)

// Cents builds Money from a count of minor units.
func Cents(v int64) Money { return Money(v) }

// MoneyFromDecimal converts an exact decimal amount to Money.
// Amounts that cannot be represented in whole cents are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(centsPerUnit)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrSubCentAmount, d.String())
	}
	return Money(cents.IntPart()), nil
}

// ParseMoney parses a decimal string such as "1245.00" or "-12.5".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ledger: parse amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MustParseMoney is ParseMoney for literals; it panics on malformed input.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return m - o }

// Neg returns -m.
func (m Money) Neg() Money { return -m }

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m < 0 }

// IsZero reports whether m == 0.
func (m Money) IsZero() bool { return m == 0 }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o < m {
		return o
	}
	return m
}

// Cents returns the raw minor-unit count.
func (m Money) Cents() int64 { return int64(m) }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float64 returns an approximate float for renderers that require one.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
