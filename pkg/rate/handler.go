package rate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type RateDTO struct {
	ID                 string  `json:"id"`
	BusinessUnitID     string  `json:"businessUnitId"`
	PerformerID        string  `json:"performerId"`
	ProjectID          *string `json:"projectId"`
	RateUnit           string  `json:"rateUnit"`
	RateValue          string  `json:"rateValue"`
	EffectiveFromMonth string  `json:"effectiveFromMonth"`
	EffectiveToMonth   *string `json:"effectiveToMonth"`
}

func RateToDTO(r Rate) RateDTO {
	dto := RateDTO{
		ID:                 r.ID.String(),
		BusinessUnitID:     r.BusinessUnitID.String(),
		PerformerID:        r.PerformerID.String(),
		RateUnit:           string(r.Unit),
		RateValue:          money.String(r.Value),
		EffectiveFromMonth: months.Key(r.EffectiveFrom),
	}
	if r.ProjectScoped() {
		projectID := r.ProjectID.String()
		dto.ProjectID = &projectID
	}
	if !r.EffectiveTo.Equal(months.Max) {
		effectiveTo := months.Key(r.EffectiveTo)
		dto.EffectiveToMonth = &effectiveTo
	}
	return dto
}

type rateEntryDTO struct {
	PerformerID        string  `json:"performerId"`
	ProjectID          *string `json:"projectId"`
	RateUnit           string  `json:"rateUnit"`
	RateValue          string  `json:"rateValue"`
	EffectiveFromMonth string  `json:"effectiveFromMonth"`
	EffectiveToMonth   *string `json:"effectiveToMonth"`
}

type bulkUpsertDTO struct {
	Entries []rateEntryDTO `json:"entries"`
}

type Handler struct {
	service Service
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func NewRateHandler(service Service) *Handler {
	return &Handler{service}
}

func writeRateError(w http.ResponseWriter, err error) {
	var overlap *OverlapError
	switch {
	case errors.As(err, &overlap),
		errors.Is(err, ErrEffectiveRangeInverted),
		errors.Is(err, ErrNegativeValue),
		errors.Is(err, ErrScopeMismatch),
		errors.Is(err, ErrDuplicateKey):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, ErrUpsertConflict):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		project.WriteServiceError(w, err)
	}
}

// ListRates godoc
// @Summary List rates visible to a project
// @Tags Rate
// @Produce json
// @Success 200 {array} RateDTO
// @Router /api/projects/{projectId}/rates [get]
// @Security XUserId
func (handler *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(muxVar(r, "projectId"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	rates, err := handler.service.List(r.Context(), projectID)
	if err != nil {
		writeRateError(w, err)
		return
	}
	dtos := make([]RateDTO, 0, len(rates))
	for _, rate := range rates {
		dtos = append(dtos, RateToDTO(rate))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// BulkUpsertRates godoc
// @Summary Upsert a batch of performer rates
// @Description All entries are validated before any write; a rejected entry fails the whole batch.
// @Tags Rate
// @Accept json
// @Produce json
// @Success 200 {array} RateDTO
// @Router /api/projects/{projectId}/rates [put]
// @Security XUserId
func (handler *Handler) BulkUpsertRates(w http.ResponseWriter, r *http.Request) {
	log.Debug("Bulk upserting performer rates")
	projectID, err := uuid.Parse(muxVar(r, "projectId"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto bulkUpsertDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entries := make([]Entry, 0, len(dto.Entries))
	for _, entryDTO := range dto.Entries {
		entry, ok := entryFromDTO(w, entryDTO)
		if !ok {
			return
		}
		entries = append(entries, entry)
	}

	persisted, err := handler.service.BulkUpsert(r.Context(), projectID, entries)
	if err != nil {
		writeRateError(w, err)
		return
	}
	dtos := make([]RateDTO, 0, len(persisted))
	for _, rate := range persisted {
		dtos = append(dtos, RateToDTO(rate))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func entryFromDTO(w http.ResponseWriter, dto rateEntryDTO) (Entry, bool) {
	performerID, err := uuid.Parse(dto.PerformerID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return Entry{}, false
	}
	entry := Entry{
		PerformerID: performerID,
		Unit:        Unit(dto.RateUnit),
		EffectiveTo: months.Max,
	}
	if dto.ProjectID != nil {
		projectID, err := uuid.Parse(*dto.ProjectID)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
			return Entry{}, false
		}
		entry.ProjectID = projectID
	}
	if entry.Value, err = decimal.NewFromString(dto.RateValue); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid rateValue", err.Error())
		return Entry{}, false
	}
	var ok bool
	if entry.EffectiveFrom, ok = project.MonthParam(w, "effectiveFromMonth", dto.EffectiveFromMonth); !ok {
		return Entry{}, false
	}
	if dto.EffectiveToMonth != nil {
		if entry.EffectiveTo, ok = project.MonthParam(w, "effectiveToMonth", *dto.EffectiveToMonth); !ok {
			return Entry{}, false
		}
	}
	return entry, true
}
