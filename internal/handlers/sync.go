package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/services"
)

type SyncHandler struct {
	syncService *services.SyncService
}

func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

type syncActionRequest struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
}

type syncRequest struct {
	Actions []syncActionRequest `json:"actions"`
}

// Sync accepts a batch of actions queued on a disconnected device and returns
// one outcome per action. The batch may arrive unordered; the reconciler
// sorts it before replay.
func (handler *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var request syncRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(request.Actions) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": []services.ActionOutcome{}})
		return
	}

	actions := make([]models.OfflineAction, 0, len(request.Actions))
	for _, action := range request.Actions {
		payload := "{}"
		if len(action.Payload) > 0 {
			payload = string(action.Payload)
		}
		actions = append(actions, models.OfflineAction{
			ID:              action.ID,
			Type:            models.OfflineActionType(action.Type),
			Payload:         payload,
			ClientTimestamp: action.ClientTimestamp,
		})
	}

	outcomes, err := handler.syncService.Reconcile(r.Context(), actions)
	if err != nil {
		slog.Error("reconciling offline actions", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}
