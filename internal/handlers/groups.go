package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

type ConflictGroupHandler struct {
	groupRepo repository.ConflictGroupRepository
}

func NewConflictGroupHandler(groupRepo repository.ConflictGroupRepository) *ConflictGroupHandler {
	return &ConflictGroupHandler{groupRepo: groupRepo}
}

type groupRequest struct {
	Name           string `json:"name"`
	SpacingMinutes int    `json:"spacing_minutes"`
}

func (handler *ConflictGroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := handler.groupRepo.FindAll(r.Context())
	if err != nil {
		slog.Error("listing conflict groups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conflict groups")
		return
	}
	writeJSON(w, http.StatusOK, groupResponses(groups))
}

func (handler *ConflictGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request groupRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if request.SpacingMinutes < 0 {
		writeError(w, http.StatusBadRequest, "spacing_minutes must be positive")
		return
	}

	created, err := handler.groupRepo.Create(r.Context(), models.ConflictGroup{
		Name:           request.Name,
		SpacingMinutes: request.SpacingMinutes,
	})
	if err != nil {
		slog.Error("creating conflict group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create conflict group")
		return
	}
	writeJSON(w, http.StatusCreated, groupResponse(created))
}

func (handler *ConflictGroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	group, err := handler.groupRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conflict group not found")
		return
	}

	var request groupRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name != "" {
		group.Name = request.Name
	}
	if request.SpacingMinutes > 0 {
		group.SpacingMinutes = request.SpacingMinutes
	}

	if err := handler.groupRepo.Update(r.Context(), group); err != nil {
		slog.Error("updating conflict group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update conflict group")
		return
	}
	writeJSON(w, http.StatusOK, groupResponse(group))
}

func (handler *ConflictGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := handler.groupRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting conflict group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete conflict group")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type groupJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SpacingMinutes int    `json:"spacing_minutes"`
}

func groupResponse(group models.ConflictGroup) groupJSON {
	return groupJSON{ID: group.ID, Name: group.Name, SpacingMinutes: group.SpacingMinutes}
}

func groupResponses(groups []models.ConflictGroup) []groupJSON {
	responses := make([]groupJSON, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, groupResponse(group))
	}
	return responses
}
