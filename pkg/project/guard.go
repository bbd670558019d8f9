package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/actor"
)

// Guard resolves a project and checks the calling actor's business-unit
// scope in one step. Other packages embed it in front of their project
// scoped operations.
type Guard struct {
	repo Repository
}

func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// View returns the project if the actor may read its business unit.
func (g *Guard) View(ctx context.Context, projectID uuid.UUID) (Project, error) {
	return g.resolve(ctx, projectID, actor.Actor.CanView)
}

// Edit returns the project if the actor may mutate its business unit.
func (g *Guard) Edit(ctx context.Context, projectID uuid.UUID) (Project, error) {
	return g.resolve(ctx, projectID, actor.Actor.CanEdit)
}

func (g *Guard) resolve(ctx context.Context, projectID uuid.UUID, allowed func(actor.Actor, uuid.UUID) bool) (Project, error) {
	p, err := g.repo.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	a, err := actor.Current(ctx)
	if err != nil {
		return Project{}, err
	}
	if !allowed(a, p.BusinessUnitID) {
		return Project{}, actor.ErrForbidden
	}
	return p, nil
}
