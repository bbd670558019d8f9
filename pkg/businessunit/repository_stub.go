package businessunit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// RepositoryStub is an in-memory Repository used by service tests.
type RepositoryStub struct {
	units map[uuid.UUID]BusinessUnit
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{units: make(map[uuid.UUID]BusinessUnit)}
}

func (s *RepositoryStub) Reset() {
	s.units = make(map[uuid.UUID]BusinessUnit)
}

func (s *RepositoryStub) Get(_ context.Context, id uuid.UUID) (BusinessUnit, error) {
	unit, ok := s.units[id]
	if !ok {
		return BusinessUnit{}, ErrBusinessUnitNotFound
	}
	return unit, nil
}

func (s *RepositoryStub) List(_ context.Context) ([]BusinessUnit, error) {
	units := make([]BusinessUnit, 0, len(s.units))
	for _, unit := range s.units {
		units = append(units, unit)
	}
	return units, nil
}

func (s *RepositoryStub) Store(_ context.Context, unit BusinessUnit) (BusinessUnit, error) {
	for _, existing := range s.units {
		if existing.Code == unit.Code {
			return BusinessUnit{}, &pgconn.PgError{Code: "23505"}
		}
	}
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	s.units[unit.ID] = unit
	return unit, nil
}

func (s *RepositoryStub) Update(_ context.Context, unit BusinessUnit) (BusinessUnit, error) {
	if _, ok := s.units[unit.ID]; !ok {
		return BusinessUnit{}, ErrBusinessUnitNotFound
	}
	s.units[unit.ID] = unit
	return unit, nil
}
