package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhite/petdose/internal/models"
)

type OfflineActionRepository interface {
	FindByID(ctx context.Context, id string) (models.OfflineAction, error)
	FindUnsynced(ctx context.Context) ([]models.OfflineAction, error)
	Record(ctx context.Context, action models.OfflineAction) error
	MarkSynced(ctx context.Context, id string) error
}

type SQLiteOfflineActionRepository struct {
	database *sql.DB
}

func NewOfflineActionRepository(database *sql.DB) *SQLiteOfflineActionRepository {
	return &SQLiteOfflineActionRepository{database: database}
}

const offlineActionColumns = `id, type, payload, client_timestamp, synced, created_at`

func (repository *SQLiteOfflineActionRepository) FindByID(ctx context.Context, id string) (models.OfflineAction, error) {
	var action models.OfflineAction
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+offlineActionColumns+" FROM offline_actions WHERE id = ?", id,
	).Scan(&action.ID, &action.Type, &action.Payload, &action.ClientTimestamp, &action.Synced, &action.CreatedAt)
	if err != nil {
		return models.OfflineAction{}, fmt.Errorf("finding offline action by id: %w", err)
	}
	return action, nil
}

func (repository *SQLiteOfflineActionRepository) FindUnsynced(ctx context.Context) ([]models.OfflineAction, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+offlineActionColumns+" FROM offline_actions WHERE synced = 0 ORDER BY client_timestamp, id",
	)
	if err != nil {
		return nil, fmt.Errorf("finding unsynced actions: %w", err)
	}
	defer rows.Close()

	var actions []models.OfflineAction
	for rows.Next() {
		var action models.OfflineAction
		if err := rows.Scan(&action.ID, &action.Type, &action.Payload, &action.ClientTimestamp, &action.Synced, &action.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning offline action: %w", err)
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// Record inserts the action if its client-generated id is unseen. An existing
// row is left untouched so the synced flag survives batch retries.
func (repository *SQLiteOfflineActionRepository) Record(ctx context.Context, action models.OfflineAction) error {
	action.CreatedAt = time.Now()
	_, err := repository.database.ExecContext(ctx,
		`INSERT OR IGNORE INTO offline_actions (id, type, payload, client_timestamp, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		action.ID, action.Type, action.Payload, action.ClientTimestamp, action.Synced, action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording offline action: %w", err)
	}
	return nil
}

func (repository *SQLiteOfflineActionRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE offline_actions SET synced = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking action synced: %w", err)
	}
	return nil
}
