package businessunit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repoStub = NewRepositoryStub()

var service Service

func setup(t *testing.T) func() {
	service = NewService(repoStub, event_bus.NewEventBus())
	return func() {
		t.Log("Teardown after test")
		repoStub.Reset()
	}
}

func adminCtx() context.Context {
	return test_utils.SuperAdminContext(context.Background())
}

func TestServiceImpl_Create(t *testing.T) {
	t.Run("super admin creates a business unit", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		created, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "Project Office", Active: true})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "PMO", created.Code)
		assert.Equal(t, "Project Office", created.Name)
		assert.True(t, created.Active)
	})

	t.Run("trims code and name", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		created, err := service.Create(adminCtx(), Create{Code: "  PMO  ", Name: "  Project Office  ", Active: true})

		require.NoError(t, err)
		assert.Equal(t, "PMO", created.Code)
		assert.Equal(t, "Project Office", created.Name)
	})

	t.Run("duplicate code is a conflict", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "First", Active: true})
		require.NoError(t, err)

		_, err = service.Create(adminCtx(), Create{Code: "PMO", Name: "Second", Active: true})

		assert.ErrorIs(t, err, ErrCodeTaken)
	})

	t.Run("empty code and name are rejected", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Create(adminCtx(), Create{Code: "   ", Name: "Office"})
		assert.ErrorIs(t, err, ErrEmptyCode)

		_, err = service.Create(adminCtx(), Create{Code: "PMO", Name: "   "})
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("only a super admin may create units", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		editorCtx := test_utils.EditorContext(context.Background(), uuid.New())

		_, err := service.Create(editorCtx, Create{Code: "PMO", Name: "Office"})

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})
}

func TestServiceImpl_Update(t *testing.T) {
	t.Run("updates name and active", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		created, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "Office", Active: true})
		require.NoError(t, err)

		newName := "Renamed Office"
		inactive := false
		updated, err := service.Update(adminCtx(), created.ID, Update{Name: &newName, Active: &inactive})

		require.NoError(t, err)
		assert.Equal(t, "Renamed Office", updated.Name)
		assert.False(t, updated.Active)
		assert.Equal(t, "PMO", updated.Code)
	})

	t.Run("nil fields keep the current values", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		created, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "Office", Active: true})
		require.NoError(t, err)

		updated, err := service.Update(adminCtx(), created.ID, Update{})

		require.NoError(t, err)
		assert.Equal(t, created, updated)
	})

	t.Run("unknown unit is not found", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Update(adminCtx(), uuid.New(), Update{})

		assert.ErrorIs(t, err, ErrBusinessUnitNotFound)
	})
}

func TestServiceImpl_List(t *testing.T) {
	t.Run("super admin sees every unit", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		_, err := service.Create(adminCtx(), Create{Code: "A", Name: "Unit A", Active: true})
		require.NoError(t, err)
		_, err = service.Create(adminCtx(), Create{Code: "B", Name: "Unit B", Active: true})
		require.NoError(t, err)

		units, err := service.List(adminCtx())

		require.NoError(t, err)
		assert.Len(t, units, 2)
	})

	t.Run("bu admin sees only administered units", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		a, err := service.Create(adminCtx(), Create{Code: "A", Name: "Unit A", Active: true})
		require.NoError(t, err)
		_, err = service.Create(adminCtx(), Create{Code: "B", Name: "Unit B", Active: true})
		require.NoError(t, err)

		buAdminCtx := actor.WithActor(context.Background(), actor.Actor{
			ID:    uuid.New(),
			Roles: []actor.RoleAssignment{{Role: actor.RoleBUAdmin, BusinessUnitID: &a.ID, Active: true}},
		})

		units, err := service.List(buAdminCtx)

		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, a.ID, units[0].ID)
	})

	t.Run("actor without any admin scope is forbidden", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		viewerCtx := test_utils.ViewerContext(context.Background(), uuid.New())

		_, err := service.List(viewerCtx)

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})
}

func TestServiceImpl_Get(t *testing.T) {
	t.Run("scoped viewer reads their own unit", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		created, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "Office", Active: true})
		require.NoError(t, err)

		unit, err := service.Get(test_utils.ViewerContext(context.Background(), created.ID), created.ID)

		require.NoError(t, err)
		assert.Equal(t, created.ID, unit.ID)
	})

	t.Run("viewer of another unit is forbidden", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		created, err := service.Create(adminCtx(), Create{Code: "PMO", Name: "Office", Active: true})
		require.NoError(t, err)

		_, err = service.Get(test_utils.ViewerContext(context.Background(), uuid.New()), created.ID)

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})
}
