package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

type ItemFilter struct {
	PetID           *string
	Type            *models.ItemType
	ConflictGroupID *string
	ActiveOnly      bool
}

type ItemRepository interface {
	FindByID(ctx context.Context, id string) (models.Item, error)
	FindAll(ctx context.Context, filter ItemFilter) ([]models.Item, error)
	FindByConflictGroup(ctx context.Context, groupID string) ([]models.Item, error)
	Create(ctx context.Context, item models.Item) (models.Item, error)
	Update(ctx context.Context, item models.Item) error
	Delete(ctx context.Context, id string) error
}

type SQLiteItemRepository struct {
	database *sql.DB
}

func NewItemRepository(database *sql.DB) *SQLiteItemRepository {
	return &SQLiteItemRepository{database: database}
}

const itemColumns = `id, pet_id, name, type, category, frequency, conflict_group_id, active, created_at, updated_at`

func (repository *SQLiteItemRepository) FindByID(ctx context.Context, id string) (models.Item, error) {
	var item models.Item
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id,
	).Scan(
		&item.ID, &item.PetID, &item.Name, &item.Type, &item.Category,
		&item.Frequency, &item.ConflictGroupID, &item.Active,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return models.Item{}, fmt.Errorf("finding item by id: %w", err)
	}
	return item, nil
}

func (repository *SQLiteItemRepository) FindAll(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE 1=1"
	var args []interface{}

	if filter.PetID != nil {
		query += " AND pet_id = ?"
		args = append(args, *filter.PetID)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, string(*filter.Type))
	}
	if filter.ConflictGroupID != nil {
		query += " AND conflict_group_id = ?"
		args = append(args, *filter.ConflictGroupID)
	}
	if filter.ActiveOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY name"

	rows, err := repository.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (repository *SQLiteItemRepository) FindByConflictGroup(ctx context.Context, groupID string) ([]models.Item, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE conflict_group_id = ? ORDER BY name", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding items by conflict group: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (repository *SQLiteItemRepository) Create(ctx context.Context, item models.Item) (models.Item, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Type == "" {
		item.Type = models.ItemTypeMedication
	}

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO items (id, pet_id, name, type, category, frequency, conflict_group_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.PetID, item.Name, item.Type, item.Category,
		item.Frequency, item.ConflictGroupID, item.Active,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return models.Item{}, fmt.Errorf("creating item: %w", err)
	}
	return item, nil
}

func (repository *SQLiteItemRepository) Update(ctx context.Context, item models.Item) error {
	item.UpdatedAt = time.Now()
	_, err := repository.database.ExecContext(ctx,
		`UPDATE items SET name = ?, type = ?, category = ?, frequency = ?,
			conflict_group_id = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.Type, item.Category, item.Frequency,
		item.ConflictGroupID, item.Active, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

func (repository *SQLiteItemRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID, &item.PetID, &item.Name, &item.Type, &item.Category,
			&item.Frequency, &item.ConflictGroupID, &item.Active,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
