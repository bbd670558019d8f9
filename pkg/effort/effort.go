package effort

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is the planned and actual person-day load of one task-performer
// pair in one month. The (project, task, performer, month) key is unique.
type Entry struct {
	ID                uuid.UUID
	ProjectID         uuid.UUID
	TaskID            uuid.UUID
	PerformerID       uuid.UUID
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
}
