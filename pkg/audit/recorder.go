package audit

import (
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/actor"
	log "github.com/sirupsen/logrus"
)

// Recorder subscribes to entity mutation events and persists one audit
// record per mutation. The actor is resolved from the event's request
// context, so recording happens for authenticated mutations only.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Register attaches the recorder to the bus and returns the unsubscribe
// function.
func (rec *Recorder) Register(bus *event_bus.EventBus) func() {
	return event_bus.SubscribeTyped(bus, event_bus.EntityMutatedEvent, rec.record)
}

func (rec *Recorder) record(e event_bus.EventT[event_bus.EntityMutated]) error {
	ctx := e.Context()
	a, err := actor.Current(ctx)
	if err != nil {
		log.Warnf("audit: no actor on %s %s mutation, skipping record", e.Data.EntityName, e.Data.EntityID)
		return nil
	}

	_, err = rec.repo.Store(ctx, Event{
		ActorUserID:    a.ID,
		BusinessUnitID: e.Data.BusinessUnitID,
		EntityName:     e.Data.EntityName,
		EntityID:       e.Data.EntityID,
		ActionType:     e.Data.ActionType,
		Before:         e.Data.Before,
		After:          e.Data.After,
		CreatedAt:      e.Data.OccurredAt,
	})
	if err != nil {
		log.Errorf("audit: could not record %s of %s %s: %v", e.Data.ActionType, e.Data.EntityName, e.Data.EntityID, err)
		return err
	}
	return nil
}
