package rate

import (
	"github.com/pplan/pplan/pkg/money"
	"github.com/shopspring/decimal"
)

// Calculator converts rates into per-day values. A day rate is used as is,
// an fte_month rate is divided by the configured working days per month.
// Both are rounded to two decimals before any multiplication happens.
type Calculator struct {
	workingDays decimal.Decimal
}

func NewCalculator(workingDaysPerMonth int) Calculator {
	return Calculator{workingDays: decimal.NewFromInt(int64(workingDaysPerMonth))}
}

func (c Calculator) PerDayValue(r Rate) decimal.Decimal {
	if r.Unit == UnitDay {
		return money.Round2(r.Value)
	}
	return money.Round2(r.Value.Div(c.workingDays))
}
