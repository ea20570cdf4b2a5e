package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

type ItemScheduleRepository interface {
	FindByID(ctx context.Context, id string) (models.ItemSchedule, error)
	FindByItem(ctx context.Context, itemID string) ([]models.ItemSchedule, error)
	FindAll(ctx context.Context) ([]models.ItemSchedule, error)
	Create(ctx context.Context, schedule models.ItemSchedule) (models.ItemSchedule, error)
	Update(ctx context.Context, schedule models.ItemSchedule) error
	Delete(ctx context.Context, id string) error
}

type SQLiteItemScheduleRepository struct {
	database *sql.DB
}

func NewItemScheduleRepository(database *sql.DB) *SQLiteItemScheduleRepository {
	return &SQLiteItemScheduleRepository{database: database}
}

func (repository *SQLiteItemScheduleRepository) FindByID(ctx context.Context, id string) (models.ItemSchedule, error) {
	var schedule models.ItemSchedule
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, item_id, label, time_of_day, created_at FROM item_schedules WHERE id = ?", id,
	).Scan(&schedule.ID, &schedule.ItemID, &schedule.Label, &schedule.TimeOfDay, &schedule.CreatedAt)
	if err != nil {
		return models.ItemSchedule{}, fmt.Errorf("finding schedule by id: %w", err)
	}
	return schedule, nil
}

func (repository *SQLiteItemScheduleRepository) FindByItem(ctx context.Context, itemID string) ([]models.ItemSchedule, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, item_id, label, time_of_day, created_at FROM item_schedules WHERE item_id = ? ORDER BY time_of_day, id",
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding schedules by item: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

func (repository *SQLiteItemScheduleRepository) FindAll(ctx context.Context) ([]models.ItemSchedule, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, item_id, label, time_of_day, created_at FROM item_schedules ORDER BY time_of_day, id",
	)
	if err != nil {
		return nil, fmt.Errorf("finding all schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

func (repository *SQLiteItemScheduleRepository) Create(ctx context.Context, schedule models.ItemSchedule) (models.ItemSchedule, error) {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	schedule.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO item_schedules (id, item_id, label, time_of_day, created_at) VALUES (?, ?, ?, ?, ?)",
		schedule.ID, schedule.ItemID, schedule.Label, schedule.TimeOfDay, schedule.CreatedAt,
	)
	if err != nil {
		return models.ItemSchedule{}, fmt.Errorf("creating schedule: %w", err)
	}
	return schedule, nil
}

func (repository *SQLiteItemScheduleRepository) Update(ctx context.Context, schedule models.ItemSchedule) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE item_schedules SET label = ?, time_of_day = ? WHERE id = ?",
		schedule.Label, schedule.TimeOfDay, schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

func (repository *SQLiteItemScheduleRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM item_schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

func scanSchedules(rows *sql.Rows) ([]models.ItemSchedule, error) {
	var schedules []models.ItemSchedule
	for rows.Next() {
		var schedule models.ItemSchedule
		if err := rows.Scan(&schedule.ID, &schedule.ItemID, &schedule.Label, &schedule.TimeOfDay, &schedule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}
