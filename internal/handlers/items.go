package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

type ItemHandler struct {
	itemRepo     repository.ItemRepository
	petRepo      repository.PetRepository
	scheduleRepo repository.ItemScheduleRepository
}

func NewItemHandler(
	itemRepo repository.ItemRepository,
	petRepo repository.PetRepository,
	scheduleRepo repository.ItemScheduleRepository,
) *ItemHandler {
	return &ItemHandler{itemRepo: itemRepo, petRepo: petRepo, scheduleRepo: scheduleRepo}
}

type itemRequest struct {
	PetID           string  `json:"pet_id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Category        string  `json:"category"`
	Frequency       string  `json:"frequency"`
	ConflictGroupID *string `json:"conflict_group_id"`
	Active          *bool   `json:"active"`
}

func (handler *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ItemFilter{}
	if petID := r.URL.Query().Get("pet_id"); petID != "" {
		filter.PetID = &petID
	}
	if itemType := r.URL.Query().Get("type"); itemType != "" {
		t := models.ItemType(itemType)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid item type")
			return
		}
		filter.Type = &t
	}
	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}

	items, err := handler.itemRepo.FindAll(r.Context(), filter)
	if err != nil {
		slog.Error("listing items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load items")
		return
	}
	writeJSON(w, http.StatusOK, itemResponses(items))
}

func (handler *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := handler.itemRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

func (handler *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request itemRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	itemType := models.ItemType(request.Type)
	if request.Type != "" && !itemType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid item type")
		return
	}
	if _, err := handler.petRepo.FindByID(r.Context(), request.PetID); err != nil {
		writeError(w, http.StatusBadRequest, "pet not found")
		return
	}

	item := models.Item{
		PetID:           request.PetID,
		Name:            request.Name,
		Type:            itemType,
		Category:        request.Category,
		Frequency:       request.Frequency,
		ConflictGroupID: request.ConflictGroupID,
		Active:          true,
	}
	if request.Active != nil {
		item.Active = *request.Active
	}

	created, err := handler.itemRepo.Create(r.Context(), item)
	if err != nil {
		slog.Error("creating item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}
	writeJSON(w, http.StatusCreated, itemResponse(created))
}

func (handler *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, err := handler.itemRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var request itemRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name != "" {
		item.Name = request.Name
	}
	if request.Type != "" {
		itemType := models.ItemType(request.Type)
		if !itemType.Valid() {
			writeError(w, http.StatusBadRequest, "invalid item type")
			return
		}
		item.Type = itemType
	}
	if request.Category != "" {
		item.Category = request.Category
	}
	if request.Frequency != "" {
		item.Frequency = request.Frequency
	}
	if request.ConflictGroupID != nil {
		item.ConflictGroupID = request.ConflictGroupID
	}
	if request.Active != nil {
		item.Active = *request.Active
	}

	if err := handler.itemRepo.Update(r.Context(), item); err != nil {
		slog.Error("updating item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse(item))
}

func (handler *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := handler.itemRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type scheduleRequest struct {
	Label     string `json:"label"`
	TimeOfDay string `json:"time_of_day"`
}

func (handler *ItemHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := handler.scheduleRepo.FindByItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("listing schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedules")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponses(schedules))
}

func (handler *ItemHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if _, err := handler.itemRepo.FindByID(r.Context(), itemID); err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var request scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if _, err := time.Parse("15:04", request.TimeOfDay); err != nil {
		writeError(w, http.StatusBadRequest, "time_of_day must be HH:MM")
		return
	}

	created, err := handler.scheduleRepo.Create(r.Context(), models.ItemSchedule{
		ItemID:    itemID,
		Label:     request.Label,
		TimeOfDay: request.TimeOfDay,
	})
	if err != nil {
		slog.Error("creating schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, scheduleResponse(created))
}

func (handler *ItemHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := handler.scheduleRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type itemJSON struct {
	ID              string  `json:"id"`
	PetID           string  `json:"pet_id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Category        string  `json:"category,omitempty"`
	Frequency       string  `json:"frequency,omitempty"`
	ConflictGroupID *string `json:"conflict_group_id,omitempty"`
	Active          bool    `json:"active"`
}

func itemResponse(item models.Item) itemJSON {
	return itemJSON{
		ID:              item.ID,
		PetID:           item.PetID,
		Name:            item.Name,
		Type:            string(item.Type),
		Category:        item.Category,
		Frequency:       item.Frequency,
		ConflictGroupID: item.ConflictGroupID,
		Active:          item.Active,
	}
}

func itemResponses(items []models.Item) []itemJSON {
	responses := make([]itemJSON, 0, len(items))
	for _, item := range items {
		responses = append(responses, itemResponse(item))
	}
	return responses
}

type scheduleJSON struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Label     string `json:"label,omitempty"`
	TimeOfDay string `json:"time_of_day"`
}

func scheduleResponse(schedule models.ItemSchedule) scheduleJSON {
	return scheduleJSON{ID: schedule.ID, ItemID: schedule.ItemID, Label: schedule.Label, TimeOfDay: schedule.TimeOfDay}
}

func scheduleResponses(schedules []models.ItemSchedule) []scheduleJSON {
	responses := make([]scheduleJSON, 0, len(schedules))
	for _, schedule := range schedules {
		responses = append(responses, scheduleResponse(schedule))
	}
	return responses
}
