package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

type PetHandler struct {
	petRepo repository.PetRepository
}

func NewPetHandler(petRepo repository.PetRepository) *PetHandler {
	return &PetHandler{petRepo: petRepo}
}

type petRequest struct {
	Name    string `json:"name"`
	Species string `json:"species"`
	Notes   string `json:"notes"`
}

func (handler *PetHandler) List(w http.ResponseWriter, r *http.Request) {
	pets, err := handler.petRepo.FindAll(r.Context())
	if err != nil {
		slog.Error("listing pets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load pets")
		return
	}
	writeJSON(w, http.StatusOK, petResponses(pets))
}

func (handler *PetHandler) Get(w http.ResponseWriter, r *http.Request) {
	pet, err := handler.petRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "pet not found")
		return
	}
	writeJSON(w, http.StatusOK, petResponse(pet))
}

func (handler *PetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request petRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := handler.petRepo.Create(r.Context(), models.Pet{
		Name:    request.Name,
		Species: request.Species,
		Notes:   request.Notes,
	})
	if err != nil {
		slog.Error("creating pet", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create pet")
		return
	}
	writeJSON(w, http.StatusCreated, petResponse(created))
}

func (handler *PetHandler) Update(w http.ResponseWriter, r *http.Request) {
	pet, err := handler.petRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "pet not found")
		return
	}

	var request petRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Name != "" {
		pet.Name = request.Name
	}
	if request.Species != "" {
		pet.Species = request.Species
	}
	pet.Notes = request.Notes

	if err := handler.petRepo.Update(r.Context(), pet); err != nil {
		slog.Error("updating pet", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update pet")
		return
	}
	writeJSON(w, http.StatusOK, petResponse(pet))
}

func (handler *PetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := handler.petRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting pet", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete pet")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type petJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species"`
	Notes   string `json:"notes,omitempty"`
}

func petResponse(pet models.Pet) petJSON {
	return petJSON{ID: pet.ID, Name: pet.Name, Species: pet.Species, Notes: pet.Notes}
}

func petResponses(pets []models.Pet) []petJSON {
	responses := make([]petJSON, 0, len(pets))
	for _, pet := range pets {
		responses = append(responses, petResponse(pet))
	}
	return responses
}
