// Package money provides fixed-point helpers for bill amounts.
//
// All amounts are decimal values with two fractional digits. Derived values
// are rounded half away from zero at the point of computation, never earlier.
// Storage backends persist amounts as integer cents, so conversions in both
// directions are exact.
package money

import "github.com/shopspring/decimal"

// OneCent is the smallest representable amount.
var OneCent = decimal.New(1, -2)

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromCents converts integer cents to a decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Cents converts a decimal amount to integer cents.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// WithinOneCent reports whether a and b differ by at most one cent.
func WithinOneCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(OneCent)
}

// SplitEven divides total into n parts that sum exactly to total.
// The remainder cents go to the first parts, one cent each, so no part
// differs from another by more than one cent.
func SplitEven(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := Cents(total)
	base := cents / int64(n)
	rem := cents % int64(n)

	parts := make([]decimal.Decimal, n)
	for i := range parts {
		share := base
		if int64(i) < rem {
			share++
		}
		parts[i] = FromCents(share)
	}
	return parts
}
