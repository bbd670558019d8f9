package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repositoryStub struct {
	stored []Event
}

func (s *repositoryStub) WithTx(_ pgx.Tx) Repository {
	return s
}

func (s *repositoryStub) Store(_ context.Context, event Event) (Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.stored = append(s.stored, event)
	return event, nil
}

func (s *repositoryStub) List(_ context.Context, businessUnitID uuid.UUID, limit int) ([]Event, error) {
	var list []Event
	for _, event := range s.stored {
		if event.BusinessUnitID == businessUnitID {
			list = append(list, event)
		}
		if len(list) == limit {
			break
		}
	}
	return list, nil
}

func TestRecorder(t *testing.T) {
	buID := uuid.New()
	occurredAt := time.Date(2025, 5, 12, 10, 30, 0, 0, time.UTC)

	mutation := func(ctx context.Context) event_bus.Event {
		return event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, event_bus.EntityMutated{
			BusinessUnitID: buID,
			EntityName:     "project",
			EntityID:       uuid.NewString(),
			ActionType:     "update",
			Before:         map[string]any{"name": "Old"},
			After:          map[string]any{"name": "New"},
			OccurredAt:     occurredAt,
		})
	}

	t.Run("records a mutation with the request actor", func(t *testing.T) {
		repo := &repositoryStub{}
		bus := event_bus.NewEventBus()
		unsubscribe := NewRecorder(repo).Register(bus)
		defer unsubscribe()
		ctx := test_utils.EditorContext(context.Background(), buID)

		err := bus.Publish(mutation(ctx))

		require.NoError(t, err)
		require.Len(t, repo.stored, 1)
		stored := repo.stored[0]
		a, err := actor.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, stored.ActorUserID)
		assert.Equal(t, buID, stored.BusinessUnitID)
		assert.Equal(t, "project", stored.EntityName)
		assert.Equal(t, "update", stored.ActionType)
		assert.Equal(t, map[string]any{"name": "New"}, stored.After)
		assert.Equal(t, occurredAt, stored.CreatedAt)
	})

	t.Run("mutation without an actor is skipped, not failed", func(t *testing.T) {
		repo := &repositoryStub{}
		bus := event_bus.NewEventBus()
		unsubscribe := NewRecorder(repo).Register(bus)
		defer unsubscribe()

		err := bus.Publish(mutation(context.Background()))

		require.NoError(t, err)
		assert.Empty(t, repo.stored)
	})

	t.Run("unsubscribed recorder no longer records", func(t *testing.T) {
		repo := &repositoryStub{}
		bus := event_bus.NewEventBus()
		unsubscribe := NewRecorder(repo).Register(bus)
		unsubscribe()
		ctx := test_utils.EditorContext(context.Background(), buID)

		err := bus.Publish(mutation(ctx))

		require.NoError(t, err)
		assert.Empty(t, repo.stored)
	})
}
