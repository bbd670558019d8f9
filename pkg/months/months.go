// Package months provides month-start date handling. All month-scoped keys
// in the system are dates normalized to the first day of a calendar month,
// held as UTC midnight time.Time values.
package months

import (
	"errors"
	"time"
)

var ErrNotMonthStart = errors.New("date must be the first day of a calendar month")

// Max is the sentinel used for open-ended effective ranges. Comparing
// against Max avoids special-casing "no end date" in every comparison.
var Max = time.Date(9999, time.December, 1, 0, 0, 0, 0, time.UTC)

// Normalize validates that the given date is a month start and returns it
// as a UTC midnight value. Dates with a day other than 1 are rejected, not
// silently truncated.
func Normalize(t time.Time) (time.Time, error) {
	if t.Day() != 1 {
		return time.Time{}, ErrNotMonthStart
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}

// Trunc returns the month start of an arbitrary date.
func Trunc(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the first day of the following month.
func Next(t time.Time) time.Time {
	return Trunc(t).AddDate(0, 1, 0)
}

// Sequence enumerates every month start from `from` through `to` inclusive.
// Interior months are never skipped; an inverted range yields nil.
func Sequence(from, to time.Time) []time.Time {
	current := Trunc(from)
	end := Trunc(to)
	var seq []time.Time
	for !current.After(end) {
		seq = append(seq, current)
		current = current.AddDate(0, 1, 0)
	}
	return seq
}

// Within reports whether month falls inside the inclusive [from, to] range.
func Within(month, from, to time.Time) bool {
	return !month.Before(from) && !month.After(to)
}

// Key formats a month start as YYYY-MM-DD for wire output and map keys.
func Key(t time.Time) string {
	return t.Format("2006-01-02")
}

// Parse reads a YYYY-MM-DD value and normalizes it to a month start.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t)
}
