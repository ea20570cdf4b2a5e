package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

var (
	ErrAlreadyConfirmed     = errors.New("instance is already confirmed")
	ErrInstanceExpired      = errors.New("instance is expired")
	ErrInstanceNotFound     = errors.New("instance not found")
	ErrScheduleNotFound     = errors.New("schedule references a missing item")
	ErrItemNotFound         = errors.New("item not found")
	ErrInvalidSnoozeMinutes = errors.New("snooze minutes must be 15, 30 or 60")
)

// SnoozeMinutesAllowed lists the only intervals a caregiver may snooze for.
var SnoozeMinutesAllowed = []int{15, 30, 60}

// DoseService owns daily-instance state and the confirmation ledger. Every
// operation takes an explicit now so offline replay can re-evaluate actions
// at the instant the caregiver recorded them.
type DoseService struct {
	instanceRepo repository.DailyInstanceRepository
	scheduleRepo repository.ItemScheduleRepository
	itemRepo     repository.ItemRepository
	groupRepo    repository.ConflictGroupRepository
	historyRepo  repository.ConfirmationHistoryRepository

	dueWindow    time.Duration
	overdueGrace time.Duration
}

func NewDoseService(
	instanceRepo repository.DailyInstanceRepository,
	scheduleRepo repository.ItemScheduleRepository,
	itemRepo repository.ItemRepository,
	groupRepo repository.ConflictGroupRepository,
	historyRepo repository.ConfirmationHistoryRepository,
	dueWindow time.Duration,
	overdueGrace time.Duration,
) *DoseService {
	return &DoseService{
		instanceRepo: instanceRepo,
		scheduleRepo: scheduleRepo,
		itemRepo:     itemRepo,
		groupRepo:    groupRepo,
		historyRepo:  historyRepo,
		dueWindow:    dueWindow,
		overdueGrace: overdueGrace,
	}
}

// ConfirmOutcome reports what a confirm attempt did. Exactly one of three
// shapes comes back: a fresh confirmation (History set), an idempotent replay
// (AlreadyConfirmed with the original writer's History), or a blocked attempt
// (Conflict.HasConflict with no state change).
type ConfirmOutcome struct {
	Instance         models.DailyInstance
	History          models.ConfirmationHistory
	Conflict         ConflictResult
	AlreadyConfirmed bool
}

func (service *DoseService) Confirm(ctx context.Context, instanceID string, now time.Time, confirmedBy string, notes string, override bool) (ConfirmOutcome, error) {
	instance, err := service.instanceRepo.FindByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConfirmOutcome{}, ErrInstanceNotFound
		}
		return ConfirmOutcome{}, err
	}

	switch instance.Status {
	case models.InstanceStatusConfirmed:
		return service.alreadyConfirmedOutcome(ctx, instance)
	case models.InstanceStatusExpired:
		return ConfirmOutcome{}, ErrInstanceExpired
	}

	conflict, err := service.CheckConflict(ctx, instance, now)
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if conflict.HasConflict && !override {
		return ConfirmOutcome{Instance: instance, Conflict: conflict}, nil
	}

	transitioned, err := service.instanceRepo.ConfirmIfActionable(ctx, instance.ID, now)
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if !transitioned {
		// Lost the race. Re-read to report which terminal state won.
		instance, err = service.instanceRepo.FindByID(ctx, instance.ID)
		if err != nil {
			return ConfirmOutcome{}, err
		}
		if instance.Status == models.InstanceStatusExpired {
			return ConfirmOutcome{}, ErrInstanceExpired
		}
		return service.alreadyConfirmedOutcome(ctx, instance)
	}

	entry, err := service.historyRepo.Create(ctx, models.ConfirmationHistory{
		InstanceID:  instance.ID,
		ItemID:      instance.ItemID,
		ConfirmedBy: confirmedBy,
		ConfirmedAt: now,
		Notes:       notes,
	})
	if err != nil {
		return ConfirmOutcome{}, fmt.Errorf("appending confirmation history: %w", err)
	}

	instance.Status = models.InstanceStatusConfirmed
	instance.ConfirmedAt = &now
	instance.SnoozedUntil = nil

	return ConfirmOutcome{Instance: instance, History: entry, Conflict: conflict}, nil
}

func (service *DoseService) alreadyConfirmedOutcome(ctx context.Context, instance models.DailyInstance) (ConfirmOutcome, error) {
	entry, err := service.historyRepo.FindLatestByInstance(ctx, instance.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ConfirmOutcome{}, err
	}
	return ConfirmOutcome{Instance: instance, History: entry, AlreadyConfirmed: true}, nil
}

// Snooze defers the instance until now+minutes. Re-snoozing overwrites the
// previous deadline rather than stacking on top of it.
func (service *DoseService) Snooze(ctx context.Context, instanceID string, now time.Time, minutes int) (models.DailyInstance, error) {
	if !snoozeMinutesValid(minutes) {
		return models.DailyInstance{}, ErrInvalidSnoozeMinutes
	}

	instance, err := service.instanceRepo.FindByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DailyInstance{}, ErrInstanceNotFound
		}
		return models.DailyInstance{}, err
	}

	switch instance.Status {
	case models.InstanceStatusConfirmed:
		return models.DailyInstance{}, ErrAlreadyConfirmed
	case models.InstanceStatusExpired:
		return models.DailyInstance{}, ErrInstanceExpired
	}

	until := now.Add(time.Duration(minutes) * time.Minute)
	transitioned, err := service.instanceRepo.SnoozeIfActionable(ctx, instance.ID, until)
	if err != nil {
		return models.DailyInstance{}, err
	}
	if !transitioned {
		instance, err = service.instanceRepo.FindByID(ctx, instance.ID)
		if err != nil {
			return models.DailyInstance{}, err
		}
		if instance.Status == models.InstanceStatusExpired {
			return models.DailyInstance{}, ErrInstanceExpired
		}
		return models.DailyInstance{}, ErrAlreadyConfirmed
	}

	instance.Status = models.InstanceStatusSnoozed
	instance.SnoozedUntil = &until
	return instance, nil
}

// ExpireElapsed transitions pending and snoozed instances from fully elapsed
// calendar days to expired. Safe to run repeatedly; this is the only
// transition not driven by a caregiver action.
func (service *DoseService) ExpireElapsed(ctx context.Context, now time.Time) (int64, error) {
	return service.instanceRepo.ExpireDaysBefore(ctx, repository.DateKey(now))
}

// CorrectHistory edits who/when on an existing ledger entry. The instance's
// status and linkage are untouched; this is an audit correction, not a state
// transition.
func (service *DoseService) CorrectHistory(ctx context.Context, historyID string, confirmedBy string, confirmedAt time.Time) (models.ConfirmationHistory, error) {
	if err := service.historyRepo.Correct(ctx, historyID, confirmedBy, confirmedAt); err != nil {
		return models.ConfirmationHistory{}, err
	}
	return service.historyRepo.FindByID(ctx, historyID)
}

func (service *DoseService) HistoryForInstance(ctx context.Context, instanceID string) ([]models.ConfirmationHistory, error) {
	return service.historyRepo.FindByInstance(ctx, instanceID)
}

func snoozeMinutesValid(minutes int) bool {
	for _, allowed := range SnoozeMinutesAllowed {
		if minutes == allowed {
			return true
		}
	}
	return false
}
