package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

const DefaultSpacingMinutes = 30

type ConflictGroupRepository interface {
	FindByID(ctx context.Context, id string) (models.ConflictGroup, error)
	FindAll(ctx context.Context) ([]models.ConflictGroup, error)
	Create(ctx context.Context, group models.ConflictGroup) (models.ConflictGroup, error)
	Update(ctx context.Context, group models.ConflictGroup) error
	Delete(ctx context.Context, id string) error
}

type SQLiteConflictGroupRepository struct {
	database *sql.DB
}

func NewConflictGroupRepository(database *sql.DB) *SQLiteConflictGroupRepository {
	return &SQLiteConflictGroupRepository{database: database}
}

func (repository *SQLiteConflictGroupRepository) FindByID(ctx context.Context, id string) (models.ConflictGroup, error) {
	var group models.ConflictGroup
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, name, spacing_minutes, created_at FROM conflict_groups WHERE id = ?", id,
	).Scan(&group.ID, &group.Name, &group.SpacingMinutes, &group.CreatedAt)
	if err != nil {
		return models.ConflictGroup{}, fmt.Errorf("finding conflict group by id: %w", err)
	}
	return group, nil
}

func (repository *SQLiteConflictGroupRepository) FindAll(ctx context.Context) ([]models.ConflictGroup, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, name, spacing_minutes, created_at FROM conflict_groups ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("finding all conflict groups: %w", err)
	}
	defer rows.Close()

	var groups []models.ConflictGroup
	for rows.Next() {
		var group models.ConflictGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.SpacingMinutes, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conflict group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (repository *SQLiteConflictGroupRepository) Create(ctx context.Context, group models.ConflictGroup) (models.ConflictGroup, error) {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.SpacingMinutes <= 0 {
		group.SpacingMinutes = DefaultSpacingMinutes
	}
	group.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO conflict_groups (id, name, spacing_minutes, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.SpacingMinutes, group.CreatedAt,
	)
	if err != nil {
		return models.ConflictGroup{}, fmt.Errorf("creating conflict group: %w", err)
	}
	return group, nil
}

func (repository *SQLiteConflictGroupRepository) Update(ctx context.Context, group models.ConflictGroup) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE conflict_groups SET name = ?, spacing_minutes = ? WHERE id = ?",
		group.Name, group.SpacingMinutes, group.ID,
	)
	if err != nil {
		return fmt.Errorf("updating conflict group: %w", err)
	}
	return nil
}

func (repository *SQLiteConflictGroupRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM conflict_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting conflict group: %w", err)
	}
	return nil
}
