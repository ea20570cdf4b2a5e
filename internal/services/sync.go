package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

type OutcomeStatus string

const (
	OutcomeApplied          OutcomeStatus = "applied"
	OutcomeAlreadyConfirmed OutcomeStatus = "already_confirmed"
	OutcomeConflict         OutcomeStatus = "conflict"
	OutcomeExpired          OutcomeStatus = "expired"
	OutcomeInvalid          OutcomeStatus = "invalid"
	OutcomeError            OutcomeStatus = "error"
)

// ActionOutcome is the per-action result of a reconciliation batch.
type ActionOutcome struct {
	ActionID string          `json:"actionId"`
	Status   OutcomeStatus   `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	Conflict *ConflictResult `json:"conflict,omitempty"`
}

// SyncService replays actions a caregiver queued while offline. Actions are
// totally ordered by (client timestamp, id) before replay, and each replays
// against the engine with its own client timestamp as now, so conflict
// windows and status checks resolve the way the caregiver saw them
// on-device. The whole batch is safe to re-run after a partial failure.
type SyncService struct {
	doses        *DoseService
	itemRepo     repository.ItemRepository
	scheduleRepo repository.ItemScheduleRepository
	actionRepo   repository.OfflineActionRepository
}

func NewSyncService(
	doses *DoseService,
	itemRepo repository.ItemRepository,
	scheduleRepo repository.ItemScheduleRepository,
	actionRepo repository.OfflineActionRepository,
) *SyncService {
	return &SyncService{
		doses:        doses,
		itemRepo:     itemRepo,
		scheduleRepo: scheduleRepo,
		actionRepo:   actionRepo,
	}
}

type confirmPayload struct {
	InstanceID  string `json:"instance_id"`
	ConfirmedBy string `json:"confirmed_by"`
	Notes       string `json:"notes"`
	Override    bool   `json:"override"`
}

type snoozePayload struct {
	InstanceID string `json:"instance_id"`
	Minutes    int    `json:"minutes"`
}

type itemPayload struct {
	ID              string  `json:"id"`
	PetID           string  `json:"pet_id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Category        string  `json:"category"`
	Frequency       string  `json:"frequency"`
	ConflictGroupID *string `json:"conflict_group_id"`
	Active          *bool   `json:"active"`
}

type schedulePayload struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Label     string `json:"label"`
	TimeOfDay string `json:"time_of_day"`
}

type entityPayload struct {
	Entity   string           `json:"entity"`
	Item     *itemPayload     `json:"item,omitempty"`
	Schedule *schedulePayload `json:"schedule,omitempty"`
}

// Reconcile replays a batch of offline actions in causal order and returns a
// per-action outcome. One action's failure never aborts the rest of the
// batch. The synced flag flips for actions that were applied or were already
// satisfied (idempotent confirms, expired instances that can never change);
// conflicted and errored actions stay unsynced for the caller to resolve.
func (service *SyncService) Reconcile(ctx context.Context, actions []models.OfflineAction) ([]ActionOutcome, error) {
	sorted := make([]models.OfflineAction, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ClientTimestamp.Equal(sorted[j].ClientTimestamp) {
			return sorted[i].ClientTimestamp.Before(sorted[j].ClientTimestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	outcomes := make([]ActionOutcome, 0, len(sorted))
	for _, action := range sorted {
		outcomes = append(outcomes, service.replayAction(ctx, action))
	}
	return outcomes, nil
}

func (service *SyncService) replayAction(ctx context.Context, action models.OfflineAction) ActionOutcome {
	if action.ID == "" {
		return ActionOutcome{Status: OutcomeInvalid, Detail: "missing action id"}
	}

	stored, err := service.actionRepo.FindByID(ctx, action.ID)
	if err == nil && stored.Synced {
		// Idempotency key already honored on a previous run.
		return ActionOutcome{ActionID: action.ID, Status: OutcomeApplied, Detail: "already synced"}
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
	}
	if err := service.actionRepo.Record(ctx, action); err != nil {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
	}

	var outcome ActionOutcome
	switch action.Type {
	case models.OfflineActionConfirm:
		outcome = service.replayConfirm(ctx, action)
	case models.OfflineActionSnooze:
		outcome = service.replaySnooze(ctx, action)
	case models.OfflineActionCreate:
		outcome = service.replayCreate(ctx, action)
	case models.OfflineActionEdit:
		outcome = service.replayEdit(ctx, action)
	default:
		outcome = ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "unknown action type"}
	}

	if outcomeSynced(outcome.Status) {
		if err := service.actionRepo.MarkSynced(ctx, action.ID); err != nil {
			slog.Error("marking action synced", "action", action.ID, "error", err)
		}
	}
	return outcome
}

func (service *SyncService) replayConfirm(ctx context.Context, action models.OfflineAction) ActionOutcome {
	var payload confirmPayload
	if err := json.Unmarshal([]byte(action.Payload), &payload); err != nil {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "malformed confirm payload"}
	}

	result, err := service.doses.Confirm(ctx, payload.InstanceID, action.ClientTimestamp, payload.ConfirmedBy, payload.Notes, payload.Override)
	switch {
	case errors.Is(err, ErrInstanceExpired):
		return ActionOutcome{ActionID: action.ID, Status: OutcomeExpired}
	case err != nil:
		return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
	case result.AlreadyConfirmed:
		return ActionOutcome{ActionID: action.ID, Status: OutcomeAlreadyConfirmed}
	case result.Conflict.HasConflict && !payload.Override:
		conflict := result.Conflict
		return ActionOutcome{ActionID: action.ID, Status: OutcomeConflict, Conflict: &conflict}
	}
	return ActionOutcome{ActionID: action.ID, Status: OutcomeApplied}
}

func (service *SyncService) replaySnooze(ctx context.Context, action models.OfflineAction) ActionOutcome {
	var payload snoozePayload
	if err := json.Unmarshal([]byte(action.Payload), &payload); err != nil {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "malformed snooze payload"}
	}

	_, err := service.doses.Snooze(ctx, payload.InstanceID, action.ClientTimestamp, payload.Minutes)
	switch {
	case errors.Is(err, ErrInvalidSnoozeMinutes):
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: err.Error()}
	case errors.Is(err, ErrAlreadyConfirmed):
		return ActionOutcome{ActionID: action.ID, Status: OutcomeAlreadyConfirmed}
	case errors.Is(err, ErrInstanceExpired):
		return ActionOutcome{ActionID: action.ID, Status: OutcomeExpired}
	case err != nil:
		return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
	}
	return ActionOutcome{ActionID: action.ID, Status: OutcomeApplied}
}

func (service *SyncService) replayCreate(ctx context.Context, action models.OfflineAction) ActionOutcome {
	var payload entityPayload
	if err := json.Unmarshal([]byte(action.Payload), &payload); err != nil {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "malformed create payload"}
	}

	switch payload.Entity {
	case "item":
		if payload.Item == nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "missing item fields"}
		}
		item := models.Item{
			ID:              payload.Item.ID,
			PetID:           payload.Item.PetID,
			Name:            payload.Item.Name,
			Type:            models.ItemType(payload.Item.Type),
			Category:        payload.Item.Category,
			Frequency:       payload.Item.Frequency,
			ConflictGroupID: payload.Item.ConflictGroupID,
			Active:          true,
		}
		if payload.Item.Active != nil {
			item.Active = *payload.Item.Active
		}
		if _, err := service.itemRepo.Create(ctx, item); err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
	case "schedule":
		if payload.Schedule == nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "missing schedule fields"}
		}
		schedule := models.ItemSchedule{
			ID:        payload.Schedule.ID,
			ItemID:    payload.Schedule.ItemID,
			Label:     payload.Schedule.Label,
			TimeOfDay: payload.Schedule.TimeOfDay,
		}
		if _, err := service.scheduleRepo.Create(ctx, schedule); err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
	default:
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "unknown entity"}
	}
	return ActionOutcome{ActionID: action.ID, Status: OutcomeApplied}
}

func (service *SyncService) replayEdit(ctx context.Context, action models.OfflineAction) ActionOutcome {
	var payload entityPayload
	if err := json.Unmarshal([]byte(action.Payload), &payload); err != nil {
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "malformed edit payload"}
	}

	switch payload.Entity {
	case "item":
		if payload.Item == nil || payload.Item.ID == "" {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "missing item id"}
		}
		item, err := service.itemRepo.FindByID(ctx, payload.Item.ID)
		if err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
		if payload.Item.Name != "" {
			item.Name = payload.Item.Name
		}
		if payload.Item.Type != "" {
			item.Type = models.ItemType(payload.Item.Type)
		}
		if payload.Item.Category != "" {
			item.Category = payload.Item.Category
		}
		if payload.Item.Frequency != "" {
			item.Frequency = payload.Item.Frequency
		}
		if payload.Item.ConflictGroupID != nil {
			item.ConflictGroupID = payload.Item.ConflictGroupID
		}
		if payload.Item.Active != nil {
			item.Active = *payload.Item.Active
		}
		if err := service.itemRepo.Update(ctx, item); err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
	case "schedule":
		if payload.Schedule == nil || payload.Schedule.ID == "" {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "missing schedule id"}
		}
		schedule, err := service.scheduleRepo.FindByID(ctx, payload.Schedule.ID)
		if err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
		if payload.Schedule.Label != "" {
			schedule.Label = payload.Schedule.Label
		}
		if payload.Schedule.TimeOfDay != "" {
			schedule.TimeOfDay = payload.Schedule.TimeOfDay
		}
		if err := service.scheduleRepo.Update(ctx, schedule); err != nil {
			return ActionOutcome{ActionID: action.ID, Status: OutcomeError, Detail: err.Error()}
		}
	default:
		return ActionOutcome{ActionID: action.ID, Status: OutcomeInvalid, Detail: "unknown entity"}
	}
	return ActionOutcome{ActionID: action.ID, Status: OutcomeApplied}
}

func outcomeSynced(status OutcomeStatus) bool {
	switch status {
	case OutcomeApplied, OutcomeAlreadyConfirmed, OutcomeExpired:
		return true
	}
	return false
}
