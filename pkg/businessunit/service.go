package businessunit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/actor"
	log "github.com/sirupsen/logrus"
)

var (
	ErrCodeTaken = errors.New("business unit code already exists")
	ErrEmptyCode = errors.New("business unit code must not be empty")
	ErrEmptyName = errors.New("business unit name must not be empty")
)

type Create struct {
	Code   string
	Name   string
	Active bool
}

// Update carries the mutable fields. Nil means keep the current value.
type Update struct {
	Name   *string
	Active *bool
}

type Service interface {
	List(ctx context.Context) ([]BusinessUnit, error)
	Get(ctx context.Context, id uuid.UUID) (BusinessUnit, error)
	Create(ctx context.Context, input Create) (BusinessUnit, error)
	Update(ctx context.Context, id uuid.UUID, input Update) (BusinessUnit, error)
}

type ServiceImpl struct {
	repo Repository
	bus  *event_bus.EventBus
}

func NewService(repo Repository, bus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, bus: bus}
}

// List returns every unit for a super admin and only the administered
// units for a business unit admin.
func (s *ServiceImpl) List(ctx context.Context) ([]BusinessUnit, error) {
	a, err := actor.Current(ctx)
	if err != nil {
		return nil, err
	}
	units, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if a.IsSuperAdmin() {
		return units, nil
	}

	adminUnits := a.AdminBusinessUnitIDs()
	if len(adminUnits) == 0 {
		return nil, actor.ErrForbidden
	}
	administered := make(map[uuid.UUID]bool, len(adminUnits))
	for _, id := range adminUnits {
		administered[id] = true
	}
	scoped := make([]BusinessUnit, 0, len(adminUnits))
	for _, unit := range units {
		if administered[unit.ID] {
			scoped = append(scoped, unit)
		}
	}
	return scoped, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (BusinessUnit, error) {
	a, err := actor.Current(ctx)
	if err != nil {
		return BusinessUnit{}, err
	}
	unit, err := s.repo.Get(ctx, id)
	if err != nil {
		return BusinessUnit{}, err
	}
	if !a.CanView(unit.ID) {
		return BusinessUnit{}, actor.ErrForbidden
	}
	return unit, nil
}

func (s *ServiceImpl) Create(ctx context.Context, input Create) (BusinessUnit, error) {
	a, err := actor.Current(ctx)
	if err != nil {
		return BusinessUnit{}, err
	}
	if !a.IsSuperAdmin() {
		return BusinessUnit{}, actor.ErrForbidden
	}

	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" {
		return BusinessUnit{}, ErrEmptyCode
	}
	if name == "" {
		return BusinessUnit{}, ErrEmptyName
	}

	created, err := s.repo.Store(ctx, BusinessUnit{Code: code, Name: name, Active: input.Active})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return BusinessUnit{}, ErrCodeTaken
		}
		return BusinessUnit{}, err
	}

	s.audit(ctx, created, "create", nil, unitFields(created))
	return created, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, input Update) (BusinessUnit, error) {
	a, err := actor.Current(ctx)
	if err != nil {
		return BusinessUnit{}, err
	}
	if !a.IsSuperAdmin() {
		return BusinessUnit{}, actor.ErrForbidden
	}

	unit, err := s.repo.Get(ctx, id)
	if err != nil {
		return BusinessUnit{}, err
	}
	before := unitFields(unit)
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return BusinessUnit{}, ErrEmptyName
		}
		unit.Name = name
	}
	if input.Active != nil {
		unit.Active = *input.Active
	}

	updated, err := s.repo.Update(ctx, unit)
	if err != nil {
		return BusinessUnit{}, err
	}

	s.audit(ctx, updated, "update", before, unitFields(updated))
	return updated, nil
}

func (s *ServiceImpl) audit(ctx context.Context, unit BusinessUnit, action string, before, after map[string]any) {
	if s.bus == nil {
		return
	}
	payload := event_bus.EntityMutated{
		BusinessUnitID: unit.ID,
		EntityName:     "business_unit",
		EntityID:       unit.ID.String(),
		ActionType:     action,
		Before:         before,
		After:          after,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, payload)); err != nil {
		log.Warnf("failed to publish %s audit event for business_unit %s: %v", action, unit.ID, err)
	}
}

func unitFields(unit BusinessUnit) map[string]any {
	return map[string]any{
		"code":   unit.Code,
		"name":   unit.Name,
		"active": unit.Active,
	}
}
