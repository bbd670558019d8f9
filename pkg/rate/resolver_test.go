package rate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/months"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var performerID = uuid.New()
var resolvedProjectID = uuid.New()

func monthOf(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func buRate(value string, from, to time.Time) Rate {
	return Rate{
		ID:            uuid.New(),
		PerformerID:   performerID,
		Unit:          UnitDay,
		Value:         decimal.RequireFromString(value),
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
}

func projectRate(value string, from, to time.Time) Rate {
	r := buRate(value, from, to)
	r.ProjectID = resolvedProjectID
	return r
}

func TestResolve(t *testing.T) {
	jan := monthOf(2025, 1)
	jun := monthOf(2025, 6)

	t.Run("project-scoped rate wins over the business unit default", func(t *testing.T) {
		candidates := []Rate{
			buRate("400", jan, months.Max),
			projectRate("550", jan, months.Max),
		}

		resolved, ok := Resolve(candidates, resolvedProjectID, jun)

		require.True(t, ok)
		assert.Equal(t, "550", resolved.Value.String())
	})

	t.Run("falls back to the default when no project rate covers the month", func(t *testing.T) {
		candidates := []Rate{
			buRate("400", jan, months.Max),
			projectRate("550", jan, monthOf(2025, 3)),
		}

		resolved, ok := Resolve(candidates, resolvedProjectID, jun)

		require.True(t, ok)
		assert.Equal(t, "400", resolved.Value.String())
	})

	t.Run("a rate scoped to another project never applies", func(t *testing.T) {
		other := buRate("999", jan, months.Max)
		other.ProjectID = uuid.New()

		_, ok := Resolve([]Rate{other}, resolvedProjectID, jun)

		assert.False(t, ok)
	})

	t.Run("latest effective start wins within a tier", func(t *testing.T) {
		candidates := []Rate{
			buRate("400", jan, months.Max),
			buRate("450", monthOf(2025, 4), months.Max),
		}

		resolved, ok := Resolve(candidates, resolvedProjectID, jun)

		require.True(t, ok)
		assert.Equal(t, "450", resolved.Value.String())
	})

	t.Run("resolution does not depend on candidate order", func(t *testing.T) {
		a := buRate("400", jan, months.Max)
		b := buRate("450", monthOf(2025, 4), months.Max)

		first, okFirst := Resolve([]Rate{a, b}, resolvedProjectID, jun)
		second, okSecond := Resolve([]Rate{b, a}, resolvedProjectID, jun)

		require.True(t, okFirst)
		require.True(t, okSecond)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("identical ranges tie-break on the larger id", func(t *testing.T) {
		a := buRate("400", jan, months.Max)
		b := buRate("450", jan, months.Max)

		resolved, ok := Resolve([]Rate{a, b}, resolvedProjectID, jun)
		reversed, okReversed := Resolve([]Rate{b, a}, resolvedProjectID, jun)

		require.True(t, ok)
		require.True(t, okReversed)
		assert.Equal(t, resolved.ID, reversed.ID)
		if a.ID.String() > b.ID.String() {
			assert.Equal(t, a.ID, resolved.ID)
		} else {
			assert.Equal(t, b.ID, resolved.ID)
		}
	})

	t.Run("no covering rate reports not found", func(t *testing.T) {
		candidates := []Rate{buRate("400", monthOf(2025, 7), months.Max)}

		_, ok := Resolve(candidates, resolvedProjectID, jun)

		assert.False(t, ok)
	})
}

func TestCalculator_PerDayValue(t *testing.T) {
	calc := NewCalculator(20)

	t.Run("day rate is used as is", func(t *testing.T) {
		r := buRate("435", monthOf(2025, 1), months.Max)

		assert.Equal(t, "435.00", calc.PerDayValue(r).StringFixed(2))
	})

	t.Run("fte_month rate is divided by working days and rounded", func(t *testing.T) {
		r := buRate("10000", monthOf(2025, 1), months.Max)
		r.Unit = UnitFTEMonth

		assert.Equal(t, "500.00", calc.PerDayValue(r).StringFixed(2))
	})

	t.Run("division result rounds to two decimals before use", func(t *testing.T) {
		r := buRate("10001", monthOf(2025, 1), months.Max)
		r.Unit = UnitFTEMonth

		assert.Equal(t, "500.05", calc.PerDayValue(r).StringFixed(2))
	})
}
