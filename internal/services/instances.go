package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
)

// EnsureInstancesForDate materializes one DailyInstance per active schedule
// for the given calendar date. Existing instances are returned untouched, so
// calling this on every list request is safe and never resets a confirmed or
// snoozed instance. Results are ordered by scheduled instant, then schedule
// id for determinism.
func (service *DoseService) EnsureInstancesForDate(ctx context.Context, date time.Time) ([]models.DailyInstance, error) {
	schedules, err := service.scheduleRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}

	dateKey := repository.DateKey(date)
	var instances []models.DailyInstance

	for _, schedule := range schedules {
		item, err := service.itemRepo.FindByID(ctx, schedule.ItemID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("schedule %s: %w", schedule.ID, ErrScheduleNotFound)
			}
			return nil, fmt.Errorf("loading item for schedule %s: %w", schedule.ID, err)
		}
		if !item.Active {
			continue
		}

		scheduledAt, err := combineDateAndTime(date, schedule.TimeOfDay)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", schedule.ID, err)
		}

		existing, err := service.instanceRepo.FindByScheduleAndDate(ctx, schedule.ID, dateKey)
		if err == nil {
			instances = append(instances, existing)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		created, err := service.instanceRepo.Create(ctx, models.DailyInstance{
			ScheduleID:  schedule.ID,
			ItemID:      schedule.ItemID,
			ScheduledAt: scheduledAt,
			Status:      models.InstanceStatusPending,
		})
		if err != nil {
			// A concurrent request may have created the row between the read
			// and the insert; the unique constraint makes the re-read safe.
			existing, findErr := service.instanceRepo.FindByScheduleAndDate(ctx, schedule.ID, dateKey)
			if findErr != nil {
				return nil, err
			}
			created = existing
		}
		instances = append(instances, created)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		if !instances[i].ScheduledAt.Equal(instances[j].ScheduledAt) {
			return instances[i].ScheduledAt.Before(instances[j].ScheduledAt)
		}
		return instances[i].ScheduleID < instances[j].ScheduleID
	})

	return instances, nil
}

// DoseView pairs an instance with its item and live display bucket for list
// responses.
type DoseView struct {
	Instance models.DailyInstance
	Item     models.Item
	Bucket   Bucket
}

// ListForDate generates the day's instances and classifies each one against
// the caller's now.
func (service *DoseService) ListForDate(ctx context.Context, date time.Time, now time.Time) ([]DoseView, error) {
	instances, err := service.EnsureInstancesForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	views := make([]DoseView, 0, len(instances))
	for _, instance := range instances {
		item, err := service.itemRepo.FindByID(ctx, instance.ItemID)
		if err != nil {
			return nil, fmt.Errorf("loading item %s: %w", instance.ItemID, err)
		}
		views = append(views, DoseView{
			Instance: instance,
			Item:     item,
			Bucket:   Classify(instance.ScheduledAt, instance.SnoozedUntil, instance.ConfirmedAt, now, service.dueWindow, service.overdueGrace),
		})
	}
	return views, nil
}

// combineDateAndTime resolves a wall-clock "HH:MM" against a calendar date in
// the date's location.
func combineDateAndTime(date time.Time, timeOfDay string) (time.Time, error) {
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time of day %q: %w", timeOfDay, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}
