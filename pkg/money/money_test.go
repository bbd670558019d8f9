package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound2(t *testing.T) {
	t.Run("rounds half up", func(t *testing.T) {
		assert.Equal(t, "0.13", String(Round2(dec("0.125"))))
		assert.Equal(t, "0.12", String(Round2(dec("0.124"))))
	})

	t.Run("entry-by-entry rounding differs from rounding the raw sum", func(t *testing.T) {
		// Three thirds rounded individually come to 0.99, not 1.00.
		third := dec("1").Div(dec("3"))
		sum := Round2(third).Add(Round2(third)).Add(Round2(third))

		assert.Equal(t, "0.99", String(sum))
		assert.Equal(t, "1.00", String(Round2(third.Mul(dec("3")))))
	})
}

func TestCost(t *testing.T) {
	t.Run("multiplies person-days by a per-day value and rounds once", func(t *testing.T) {
		assert.Equal(t, "761.25", String(Cost(dec("1.75"), dec("435"))))
	})

	t.Run("rounds the product, not the factors", func(t *testing.T) {
		// 0.33 * 150.50 = 49.665, rounded half up.
		assert.Equal(t, "49.67", String(Cost(dec("0.33"), dec("150.50"))))
	})
}

func TestPercentOf(t *testing.T) {
	t.Run("returns part over whole as a rounded percentage", func(t *testing.T) {
		assert.Equal(t, "50.00", String(PercentOf(dec("150.00"), dec("300.00"))))
		assert.Equal(t, "66.67", String(PercentOf(dec("2"), dec("3"))))
	})

	t.Run("zero whole yields zero instead of an error", func(t *testing.T) {
		assert.Equal(t, "0.00", String(PercentOf(dec("150.00"), Zero)))
	})
}

func TestString(t *testing.T) {
	assert.Equal(t, "0.00", String(Zero))
	assert.Equal(t, "12.50", String(dec("12.5")))
	assert.Equal(t, "3.00", String(dec("3")))
}
