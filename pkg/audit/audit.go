package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one persisted audit trail record. Before and After hold the
// entity payloads around the mutation; Before is nil on create, After on
// delete.
type Event struct {
	ID             uuid.UUID
	ActorUserID    uuid.UUID
	BusinessUnitID uuid.UUID
	EntityName     string
	EntityID       string
	ActionType     string
	Before         map[string]any
	After          map[string]any
	CreatedAt      time.Time
}
