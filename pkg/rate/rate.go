package rate

import (
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/months"
	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitDay      Unit = "day"
	UnitFTEMonth Unit = "fte_month"
)

// Rate is a performer billing rate effective over an inclusive month range.
// ProjectID of uuid.Nil means the rate is the business-unit default; a set
// ProjectID scopes it to that single project and wins over the default.
// EffectiveTo of months.Max means the range is open-ended.
type Rate struct {
	ID             uuid.UUID
	BusinessUnitID uuid.UUID
	PerformerID    uuid.UUID
	ProjectID      uuid.UUID
	Unit           Unit
	Value          decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveTo    time.Time
}

// ProjectScoped reports whether the rate targets a single project rather
// than the whole business unit.
func (r Rate) ProjectScoped() bool {
	return r.ProjectID != uuid.Nil
}

// CoversMonth reports whether the month falls inside the effective range.
func (r Rate) CoversMonth(month time.Time) bool {
	return months.Within(month, r.EffectiveFrom, r.EffectiveTo)
}
