package businessunit

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/actor"
	log "github.com/sirupsen/logrus"
)

type BusinessUnitDTO struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type createDTO struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type updateDTO struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func toDTO(unit BusinessUnit) BusinessUnitDTO {
	return BusinessUnitDTO{
		ID:        unit.ID.String(),
		Code:      unit.Code,
		Name:      unit.Name,
		Active:    unit.Active,
		CreatedAt: unit.CreatedAt,
		UpdatedAt: unit.UpdatedAt,
	}
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListBusinessUnits godoc
// @Summary List business units visible to the actor
// @Tags BusinessUnit
// @Produce json
// @Success 200 {array} BusinessUnitDTO
// @Router /api/businessunit [get]
// @Security XUserId
func (handler *Handler) ListBusinessUnits(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing business units")
	units, err := handler.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]BusinessUnitDTO, 0, len(units))
	for _, unit := range units {
		dtos = append(dtos, toDTO(unit))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetBusinessUnit godoc
// @Summary Get a single business unit
// @Tags BusinessUnit
// @Produce json
// @Success 200 {object} BusinessUnitDTO
// @Router /api/businessunit/{businessUnitId} [get]
// @Security XUserId
func (handler *Handler) GetBusinessUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["businessUnitId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}
	unit, err := handler.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(unit))
}

// CreateBusinessUnit godoc
// @Summary Create a business unit
// @Tags BusinessUnit
// @Accept json
// @Produce json
// @Success 201 {object} BusinessUnitDTO
// @Router /api/businessunit [post]
// @Security XUserId
func (handler *Handler) CreateBusinessUnit(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new business unit")
	var dto createDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	created, err := handler.service.Create(r.Context(), Create{Code: dto.Code, Name: dto.Name, Active: dto.Active})
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

// UpdateBusinessUnit godoc
// @Summary Update a business unit's name or active flag
// @Tags BusinessUnit
// @Accept json
// @Produce json
// @Success 200 {object} BusinessUnitDTO
// @Router /api/businessunit/{businessUnitId} [patch]
// @Security XUserId
func (handler *Handler) UpdateBusinessUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["businessUnitId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}
	var dto updateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	updated, err := handler.service.Update(r.Context(), id, Update{Name: dto.Name, Active: dto.Active})
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actor.ErrNoActor):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, actor.ErrForbidden):
		rest.WriteError(w, http.StatusForbidden, "Insufficient business unit scope permissions for this operation.", "")
	case errors.Is(err, ErrBusinessUnitNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrCodeTaken):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, ErrEmptyCode), errors.Is(err, ErrEmptyName):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}
