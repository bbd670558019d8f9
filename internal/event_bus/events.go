package event_bus

import (
	"time"

	"github.com/google/uuid"
)

// EntityMutated is published after any successful domain mutation so the
// audit recorder can persist who changed what. Before/After carry the
// serialized entity payloads; Before is nil on create, After on delete.
type EntityMutated struct {
	BusinessUnitID uuid.UUID
	EntityName     string
	EntityID       string
	ActionType     string
	Before         map[string]any
	After          map[string]any
	OccurredAt     time.Time
}

const (
	EntityMutatedEvent EventType = "entity.mutated"
)
