package project

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Project owns an inclusive [StartMonth, EndMonth] month range. All child
// records' months must fall within this range; shrinking the range is
// rejected while effort entries exist outside it.
type Project struct {
	ID             uuid.UUID
	BusinessUnitID uuid.UUID
	Code           string
	Name           string
	Description    string
	StartMonth     time.Time
	EndMonth       time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Stage struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Name       string
	StartMonth time.Time
	EndMonth   time.Time
	ColorToken string
	SequenceNo int
}

type Task struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	StageID    uuid.UUID
	Code       string
	Name       string
	SequenceNo int
	Active     bool
}

type Performer struct {
	ID             uuid.UUID
	BusinessUnitID uuid.UUID
	ExternalRef    string
	DisplayName    string
	Active         bool
}

type Assignment struct {
	TaskID      uuid.UUID
	PerformerID uuid.UUID
}
