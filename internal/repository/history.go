package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

type ConfirmationHistoryRepository interface {
	FindByID(ctx context.Context, id string) (models.ConfirmationHistory, error)
	FindByInstance(ctx context.Context, instanceID string) ([]models.ConfirmationHistory, error)
	FindLatestByInstance(ctx context.Context, instanceID string) (models.ConfirmationHistory, error)
	FindLatestByItemBefore(ctx context.Context, itemID string, cutoff time.Time) (models.ConfirmationHistory, error)
	Create(ctx context.Context, entry models.ConfirmationHistory) (models.ConfirmationHistory, error)
	Correct(ctx context.Context, id string, confirmedBy string, confirmedAt time.Time) error
	CountByInstance(ctx context.Context, instanceID string) (int, error)
}

type SQLiteConfirmationHistoryRepository struct {
	database *sql.DB
}

func NewConfirmationHistoryRepository(database *sql.DB) *SQLiteConfirmationHistoryRepository {
	return &SQLiteConfirmationHistoryRepository{database: database}
}

const historyColumns = `id, instance_id, item_id, confirmed_by, confirmed_at, notes, created_at`

func (repository *SQLiteConfirmationHistoryRepository) FindByID(ctx context.Context, id string) (models.ConfirmationHistory, error) {
	var entry models.ConfirmationHistory
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM confirmation_history WHERE id = ?", id,
	).Scan(
		&entry.ID, &entry.InstanceID, &entry.ItemID, &entry.ConfirmedBy,
		&entry.ConfirmedAt, &entry.Notes, &entry.CreatedAt,
	)
	if err != nil {
		return models.ConfirmationHistory{}, fmt.Errorf("finding history by id: %w", err)
	}
	return entry, nil
}

func (repository *SQLiteConfirmationHistoryRepository) FindByInstance(ctx context.Context, instanceID string) ([]models.ConfirmationHistory, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM confirmation_history WHERE instance_id = ? ORDER BY confirmed_at DESC, id",
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding history by instance: %w", err)
	}
	defer rows.Close()

	var entries []models.ConfirmationHistory
	for rows.Next() {
		var entry models.ConfirmationHistory
		if err := rows.Scan(
			&entry.ID, &entry.InstanceID, &entry.ItemID, &entry.ConfirmedBy,
			&entry.ConfirmedAt, &entry.Notes, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (repository *SQLiteConfirmationHistoryRepository) FindLatestByInstance(ctx context.Context, instanceID string) (models.ConfirmationHistory, error) {
	var entry models.ConfirmationHistory
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM confirmation_history WHERE instance_id = ? ORDER BY confirmed_at DESC, id LIMIT 1",
		instanceID,
	).Scan(
		&entry.ID, &entry.InstanceID, &entry.ItemID, &entry.ConfirmedBy,
		&entry.ConfirmedAt, &entry.Notes, &entry.CreatedAt,
	)
	if err != nil {
		return models.ConfirmationHistory{}, fmt.Errorf("finding latest history for instance: %w", err)
	}
	return entry, nil
}

// FindLatestByItemBefore returns the item's most recent confirmation at or
// before cutoff. Used by the conflict window check, which must ignore
// confirmations recorded after the evaluation instant.
func (repository *SQLiteConfirmationHistoryRepository) FindLatestByItemBefore(ctx context.Context, itemID string, cutoff time.Time) (models.ConfirmationHistory, error) {
	var entry models.ConfirmationHistory
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM confirmation_history WHERE item_id = ? AND confirmed_at <= ? ORDER BY confirmed_at DESC, id LIMIT 1",
		itemID, cutoff,
	).Scan(
		&entry.ID, &entry.InstanceID, &entry.ItemID, &entry.ConfirmedBy,
		&entry.ConfirmedAt, &entry.Notes, &entry.CreatedAt,
	)
	if err != nil {
		return models.ConfirmationHistory{}, fmt.Errorf("finding latest history for item: %w", err)
	}
	return entry, nil
}

func (repository *SQLiteConfirmationHistoryRepository) Create(ctx context.Context, entry models.ConfirmationHistory) (models.ConfirmationHistory, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO confirmation_history (id, instance_id, item_id, confirmed_by, confirmed_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.InstanceID, entry.ItemID, entry.ConfirmedBy,
		entry.ConfirmedAt, entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		return models.ConfirmationHistory{}, fmt.Errorf("creating history entry: %w", err)
	}
	return entry, nil
}

// Correct mutates confirmed_by/confirmed_at in place. The entry keeps its
// identity and instance linkage; corrections never delete the audit record.
func (repository *SQLiteConfirmationHistoryRepository) Correct(ctx context.Context, id string, confirmedBy string, confirmedAt time.Time) error {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE confirmation_history SET confirmed_by = ?, confirmed_at = ? WHERE id = ?",
		confirmedBy, confirmedAt, id,
	)
	if err != nil {
		return fmt.Errorf("correcting history entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading correction result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("correcting history entry: %w", sql.ErrNoRows)
	}
	return nil
}

func (repository *SQLiteConfirmationHistoryRepository) CountByInstance(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := repository.database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM confirmation_history WHERE instance_id = ?", instanceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting history entries: %w", err)
	}
	return count, nil
}
