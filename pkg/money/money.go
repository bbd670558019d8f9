// Package money holds the fixed-precision arithmetic helpers used for all
// monetary and person-day quantities. Every intermediate sum is rounded to
// two decimal places, not only the final output, so aggregates are
// reproducible regardless of computation order.
package money

import (
	"github.com/shopspring/decimal"
)

// Zero is the canonical 0.00 value.
var Zero = decimal.Zero

// Round2 rounds half-up to two decimal places.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Cost converts person-days at a per-day value into a rounded amount.
func Cost(personDays, perDayValue decimal.Decimal) decimal.Decimal {
	return Round2(personDays.Mul(perDayValue))
}

// PercentOf returns part/whole*100 rounded to two decimals. A zero whole
// yields 0.00 instead of a division error.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return Zero
	}
	return Round2(part.Mul(decimal.NewFromInt(100)).Div(whole))
}

// String formats a value with exactly two decimal places.
func String(v decimal.Decimal) string {
	return v.StringFixed(2)
}
