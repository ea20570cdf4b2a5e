package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhite/petdose/internal/middleware"
	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/services"
)

type DoseHandler struct {
	doseService *services.DoseService
}

func NewDoseHandler(doseService *services.DoseService) *DoseHandler {
	return &DoseHandler{doseService: doseService}
}

// List materializes and returns the day's doses, classified against the
// request's now. Optional filters: date (YYYY-MM-DD, default today) and
// status (display bucket).
func (handler *DoseHandler) List(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	date := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, now.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	var bucketFilter services.Bucket
	if raw := r.URL.Query().Get("status"); raw != "" {
		bucketFilter = services.Bucket(raw)
		if !bucketFilter.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status bucket")
			return
		}
	}

	views, err := handler.doseService.ListForDate(r.Context(), date, now)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			writeError(w, http.StatusConflict, "a schedule references a missing item")
			return
		}
		slog.Error("listing doses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load doses")
		return
	}

	responses := make([]doseJSON, 0, len(views))
	for _, view := range views {
		if bucketFilter != "" && view.Bucket != bucketFilter {
			continue
		}
		responses = append(responses, doseResponse(view))
	}
	writeJSON(w, http.StatusOK, responses)
}

type confirmRequest struct {
	ConfirmedBy string `json:"confirmed_by"`
	Notes       string `json:"notes"`
	Override    bool   `json:"override"`
}

// Confirm transitions a dose to confirmed. A detected conflict is a decision
// result, not an error: it comes back 200 with hasConflict=true so the client
// can prompt before retrying with override.
func (handler *DoseHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var request confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	confirmedBy := request.ConfirmedBy
	if confirmedBy == "" {
		confirmedBy = middleware.GetCaregiver(r.Context())
	}

	outcome, err := handler.doseService.Confirm(r.Context(), chi.URLParam(r, "id"), time.Now(), confirmedBy, request.Notes, request.Override)
	if err != nil {
		handler.writeDoseError(w, err, "confirming dose")
		return
	}

	if outcome.Conflict.HasConflict && !request.Override && !outcome.AlreadyConfirmed {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"hasConflict":         true,
			"conflictingItemName": outcome.Conflict.ConflictingItemName,
			"remainingMinutes":    outcome.Conflict.RemainingMinutes,
			"canOverride":         outcome.Conflict.CanOverride,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hasConflict":      false,
		"alreadyConfirmed": outcome.AlreadyConfirmed,
		"instance":         instanceJSONFrom(outcome.Instance),
		"history":          historyResponse(outcome.History),
	})
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (handler *DoseHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var request snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	instance, err := handler.doseService.Snooze(r.Context(), chi.URLParam(r, "id"), time.Now(), request.Minutes)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSnoozeMinutes) {
			writeError(w, http.StatusBadRequest, "minutes must be 15, 30 or 60")
			return
		}
		handler.writeDoseError(w, err, "snoozing dose")
		return
	}

	writeJSON(w, http.StatusOK, instanceJSONFrom(instance))
}

func (handler *DoseHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := handler.doseService.HistoryForInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	responses := make([]historyJSON, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, historyResponse(entry))
	}
	writeJSON(w, http.StatusOK, responses)
}

type correctionRequest struct {
	ConfirmedBy string    `json:"confirmed_by"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (handler *DoseHandler) CorrectHistory(w http.ResponseWriter, r *http.Request) {
	var request correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.ConfirmedBy == "" || request.ConfirmedAt.IsZero() {
		writeError(w, http.StatusBadRequest, "confirmed_by and confirmed_at are required")
		return
	}

	entry, err := handler.doseService.CorrectHistory(r.Context(), chi.URLParam(r, "id"), request.ConfirmedBy, request.ConfirmedAt)
	if err != nil {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse(entry))
}

func (handler *DoseHandler) writeDoseError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrInstanceNotFound):
		writeError(w, http.StatusNotFound, "dose not found")
	case errors.Is(err, services.ErrInstanceExpired):
		writeError(w, http.StatusConflict, "dose has expired")
	case errors.Is(err, services.ErrAlreadyConfirmed):
		writeError(w, http.StatusConflict, "dose is already confirmed")
	default:
		slog.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type doseJSON struct {
	instanceJSON
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`
	Bucket   string `json:"status"`
}

type instanceJSON struct {
	ID           string     `json:"id"`
	ScheduleID   string     `json:"schedule_id"`
	ItemID       string     `json:"item_id"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	StoredStatus string     `json:"stored_status"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

type historyJSON struct {
	ID          string    `json:"id"`
	InstanceID  string    `json:"instance_id"`
	ItemID      string    `json:"item_id"`
	ConfirmedBy string    `json:"confirmed_by"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	Notes       string    `json:"notes,omitempty"`
}

func doseResponse(view services.DoseView) doseJSON {
	return doseJSON{
		instanceJSON: instanceJSONFrom(view.Instance),
		ItemName:     view.Item.Name,
		ItemType:     string(view.Item.Type),
		Bucket:       string(view.Bucket),
	}
}

func instanceJSONFrom(instance models.DailyInstance) instanceJSON {
	return instanceJSON{
		ID:           instance.ID,
		ScheduleID:   instance.ScheduleID,
		ItemID:       instance.ItemID,
		ScheduledAt:  instance.ScheduledAt,
		StoredStatus: string(instance.Status),
		SnoozedUntil: instance.SnoozedUntil,
		ConfirmedAt:  instance.ConfirmedAt,
	}
}

func historyResponse(entry models.ConfirmationHistory) historyJSON {
	return historyJSON{
		ID:          entry.ID,
		InstanceID:  entry.InstanceID,
		ItemID:      entry.ItemID,
		ConfirmedBy: entry.ConfirmedBy,
		ConfirmedAt: entry.ConfirmedAt,
		Notes:       entry.Notes,
	}
}
