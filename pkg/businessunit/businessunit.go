package businessunit

import (
	"time"

	"github.com/google/uuid"
)

type BusinessUnit struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
