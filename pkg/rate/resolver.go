package rate

import (
	"time"

	"github.com/google/uuid"
)

// Resolve picks the effective rate for one performer-month out of the
// performer's candidate rates. Project-scoped rates that cover the month
// are considered first; only when none exists do the business-unit
// defaults apply. Within a tier the rate with the latest effective start
// wins, then the latest effective end, then the lexically largest id, so
// the outcome does not depend on storage order.
func Resolve(candidates []Rate, projectID uuid.UUID, month time.Time) (Rate, bool) {
	if best, ok := pickLatest(candidates, projectID, month); ok {
		return best, true
	}
	return pickLatest(candidates, uuid.Nil, month)
}

func pickLatest(candidates []Rate, projectID uuid.UUID, month time.Time) (Rate, bool) {
	var best Rate
	found := false
	for _, candidate := range candidates {
		if candidate.ProjectID != projectID || !candidate.CoversMonth(month) {
			continue
		}
		if !found || laterThan(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

func laterThan(a, b Rate) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	if !a.EffectiveTo.Equal(b.EffectiveTo) {
		return a.EffectiveTo.After(b.EffectiveTo)
	}
	return a.ID.String() > b.ID.String()
}
