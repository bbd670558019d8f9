package actor

import (
	"errors"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the actor's role assignments do not cover
// the business unit of the data being accessed.
var ErrForbidden = errors.New("insufficient permissions for business unit")

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleBUAdmin    Role = "bu_admin"
	RoleEditor     Role = "editor"
	RoleViewer     Role = "viewer"
)

// RoleAssignment grants a role either globally (super_admin, nil business
// unit) or scoped to a single business unit.
type RoleAssignment struct {
	Role           Role
	BusinessUnitID *uuid.UUID
	Active         bool
}

// Actor is the already-authenticated caller of a request. Identity
// resolution happens in the HTTP middleware; services only consult the
// actor's business-unit scope.
type Actor struct {
	ID          uuid.UUID
	ExternalID  string
	Email       string
	DisplayName string
	Roles       []RoleAssignment
}

var editRoles = map[Role]bool{RoleSuperAdmin: true, RoleBUAdmin: true, RoleEditor: true}
var viewRoles = map[Role]bool{RoleSuperAdmin: true, RoleBUAdmin: true, RoleEditor: true, RoleViewer: true}

func (a Actor) hasBusinessUnitAccess(businessUnitID uuid.UUID, allowed map[Role]bool) bool {
	for _, assignment := range a.Roles {
		if !assignment.Active || !allowed[assignment.Role] {
			continue
		}
		if assignment.Role == RoleSuperAdmin {
			return true
		}
		if assignment.BusinessUnitID != nil && *assignment.BusinessUnitID == businessUnitID {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the actor holds an active global role.
func (a Actor) IsSuperAdmin() bool {
	for _, assignment := range a.Roles {
		if assignment.Active && assignment.Role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// AdminBusinessUnitIDs returns the business units the actor administers
// through active scoped assignments.
func (a Actor) AdminBusinessUnitIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, assignment := range a.Roles {
		if assignment.Active && assignment.Role == RoleBUAdmin && assignment.BusinessUnitID != nil {
			ids = append(ids, *assignment.BusinessUnitID)
		}
	}
	return ids
}

// CanView reports whether the actor may read data in the business unit.
func (a Actor) CanView(businessUnitID uuid.UUID) bool {
	return a.hasBusinessUnitAccess(businessUnitID, viewRoles)
}

// CanEdit reports whether the actor may mutate data in the business unit.
func (a Actor) CanEdit(businessUnitID uuid.UUID) bool {
	return a.hasBusinessUnitAccess(businessUnitID, editRoles)
}
