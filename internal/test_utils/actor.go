package test_utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/actor"
)

// SuperAdminContext returns a context carrying a super admin test actor.
func SuperAdminContext(ctx context.Context) context.Context {
	return actor.WithActor(ctx, actor.Actor{
		ID:          uuid.New(),
		ExternalID:  "test-super-admin",
		Email:       "admin@test.local",
		DisplayName: "Test Super Admin",
		Roles:       []actor.RoleAssignment{{Role: actor.RoleSuperAdmin, Active: true}},
	})
}

// EditorContext returns a context carrying an editor scoped to one
// business unit.
func EditorContext(ctx context.Context, businessUnitID uuid.UUID) context.Context {
	return actor.WithActor(ctx, actor.Actor{
		ID:          uuid.New(),
		ExternalID:  "test-editor",
		Email:       "editor@test.local",
		DisplayName: "Test Editor",
		Roles:       []actor.RoleAssignment{{Role: actor.RoleEditor, BusinessUnitID: &businessUnitID, Active: true}},
	})
}

// ViewerContext returns a context carrying a read-only actor scoped to one
// business unit.
func ViewerContext(ctx context.Context, businessUnitID uuid.UUID) context.Context {
	return actor.WithActor(ctx, actor.Actor{
		ID:          uuid.New(),
		ExternalID:  "test-viewer",
		Email:       "viewer@test.local",
		DisplayName: "Test Viewer",
		Roles:       []actor.RoleAssignment{{Role: actor.RoleViewer, BusinessUnitID: &businessUnitID, Active: true}},
	})
}
