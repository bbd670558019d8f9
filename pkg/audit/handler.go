package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/actor"
	log "github.com/sirupsen/logrus"
)

type EventDTO struct {
	ID             string         `json:"id"`
	ActorUserID    string         `json:"actorUserId"`
	BusinessUnitID string         `json:"businessUnitId"`
	EntityName     string         `json:"entityName"`
	EntityID       string         `json:"entityId"`
	ActionType     string         `json:"actionType"`
	Before         map[string]any `json:"before,omitempty"`
	After          map[string]any `json:"after,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

const defaultListLimit = 100

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListEvents godoc
// @Summary Recent audit trail of a business unit
// @Tags Audit
// @Produce json
// @Success 200 {array} EventDTO
// @Router /api/businessunit/{businessUnitId}/audit-events [get]
// @Security XUserId
func (handler *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing audit events")
	businessUnitID, err := uuid.Parse(mux.Vars(r)["businessUnitId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}

	a, err := actor.Current(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}
	if !a.CanView(businessUnitID) {
		rest.WriteError(w, http.StatusForbidden, "Insufficient business unit scope permissions for this operation.", "")
		return
	}

	limit := defaultListLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			rest.WriteError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := handler.repo.List(r.Context(), businessUnitID, limit)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, EventDTO{
			ID:             event.ID.String(),
			ActorUserID:    event.ActorUserID.String(),
			BusinessUnitID: event.BusinessUnitID.String(),
			EntityName:     event.EntityName,
			EntityID:       event.EntityID,
			ActionType:     event.ActionType,
			Before:         event.Before,
			After:          event.After,
			CreatedAt:      event.CreatedAt,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}
