package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

// DateKey is the canonical calendar-date form used for the per-day
// uniqueness constraint on daily instances.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

type DailyInstanceRepository interface {
	FindByID(ctx context.Context, id string) (models.DailyInstance, error)
	FindByScheduleAndDate(ctx context.Context, scheduleID string, date string) (models.DailyInstance, error)
	FindByDate(ctx context.Context, date string) ([]models.DailyInstance, error)
	Create(ctx context.Context, instance models.DailyInstance) (models.DailyInstance, error)
	ConfirmIfActionable(ctx context.Context, id string, confirmedAt time.Time) (bool, error)
	SnoozeIfActionable(ctx context.Context, id string, snoozedUntil time.Time) (bool, error)
	ExpireDaysBefore(ctx context.Context, date string) (int64, error)
}

type SQLiteDailyInstanceRepository struct {
	database *sql.DB
}

func NewDailyInstanceRepository(database *sql.DB) *SQLiteDailyInstanceRepository {
	return &SQLiteDailyInstanceRepository{database: database}
}

const instanceColumns = `id, schedule_id, item_id, scheduled_at, status, snoozed_until, confirmed_at, created_at`

func (repository *SQLiteDailyInstanceRepository) FindByID(ctx context.Context, id string) (models.DailyInstance, error) {
	var instance models.DailyInstance
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM daily_instances WHERE id = ?", id,
	).Scan(
		&instance.ID, &instance.ScheduleID, &instance.ItemID, &instance.ScheduledAt,
		&instance.Status, &instance.SnoozedUntil, &instance.ConfirmedAt, &instance.CreatedAt,
	)
	if err != nil {
		return models.DailyInstance{}, fmt.Errorf("finding instance by id: %w", err)
	}
	return instance, nil
}

func (repository *SQLiteDailyInstanceRepository) FindByScheduleAndDate(ctx context.Context, scheduleID string, date string) (models.DailyInstance, error) {
	var instance models.DailyInstance
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM daily_instances WHERE schedule_id = ? AND scheduled_date = ?",
		scheduleID, date,
	).Scan(
		&instance.ID, &instance.ScheduleID, &instance.ItemID, &instance.ScheduledAt,
		&instance.Status, &instance.SnoozedUntil, &instance.ConfirmedAt, &instance.CreatedAt,
	)
	if err != nil {
		return models.DailyInstance{}, fmt.Errorf("finding instance by schedule and date: %w", err)
	}
	return instance, nil
}

func (repository *SQLiteDailyInstanceRepository) FindByDate(ctx context.Context, date string) ([]models.DailyInstance, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+instanceColumns+" FROM daily_instances WHERE scheduled_date = ? ORDER BY scheduled_at, schedule_id",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("finding instances by date: %w", err)
	}
	defer rows.Close()

	var instances []models.DailyInstance
	for rows.Next() {
		var instance models.DailyInstance
		if err := rows.Scan(
			&instance.ID, &instance.ScheduleID, &instance.ItemID, &instance.ScheduledAt,
			&instance.Status, &instance.SnoozedUntil, &instance.ConfirmedAt, &instance.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// Create inserts a pending instance for (schedule, date). The unique
// constraint on (schedule_id, scheduled_date) makes concurrent generation
// safe: the loser of a race gets a constraint error and re-reads.
func (repository *SQLiteDailyInstanceRepository) Create(ctx context.Context, instance models.DailyInstance) (models.DailyInstance, error) {
	if instance.ID == "" {
		instance.ID = uuid.New().String()
	}
	if instance.Status == "" {
		instance.Status = models.InstanceStatusPending
	}
	instance.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO daily_instances (id, schedule_id, item_id, scheduled_date, scheduled_at, status, snoozed_until, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		instance.ID, instance.ScheduleID, instance.ItemID, DateKey(instance.ScheduledAt),
		instance.ScheduledAt, instance.Status, instance.SnoozedUntil, instance.ConfirmedAt,
		instance.CreatedAt,
	)
	if err != nil {
		return models.DailyInstance{}, fmt.Errorf("creating instance: %w", err)
	}
	return instance, nil
}

// ConfirmIfActionable transitions the instance to confirmed only if it is not
// already in a terminal state. Returns false when the guard did not match, in
// which case the caller re-reads to find out which terminal state won.
func (repository *SQLiteDailyInstanceRepository) ConfirmIfActionable(ctx context.Context, id string, confirmedAt time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE daily_instances
		SET status = ?, confirmed_at = ?, snoozed_until = NULL
		WHERE id = ? AND status NOT IN (?, ?)`,
		models.InstanceStatusConfirmed, confirmedAt, id,
		models.InstanceStatusConfirmed, models.InstanceStatusExpired,
	)
	if err != nil {
		return false, fmt.Errorf("confirming instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading confirm result: %w", err)
	}
	return affected == 1, nil
}

func (repository *SQLiteDailyInstanceRepository) SnoozeIfActionable(ctx context.Context, id string, snoozedUntil time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE daily_instances
		SET status = ?, snoozed_until = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		models.InstanceStatusSnoozed, snoozedUntil, id,
		models.InstanceStatusConfirmed, models.InstanceStatusExpired,
	)
	if err != nil {
		return false, fmt.Errorf("snoozing instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading snooze result: %w", err)
	}
	return affected == 1, nil
}

// ExpireDaysBefore marks pending and snoozed instances from calendar days
// strictly before date as expired. Idempotent.
func (repository *SQLiteDailyInstanceRepository) ExpireDaysBefore(ctx context.Context, date string) (int64, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE daily_instances
		SET status = ?, snoozed_until = NULL
		WHERE status IN (?, ?) AND scheduled_date < ?`,
		models.InstanceStatusExpired,
		models.InstanceStatusPending, models.InstanceStatusSnoozed, date,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring instances: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading expire result: %w", err)
	}
	return affected, nil
}
