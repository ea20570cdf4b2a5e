package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite/petdose/internal/models"
)

type PetRepository interface {
	FindByID(ctx context.Context, id string) (models.Pet, error)
	FindAll(ctx context.Context) ([]models.Pet, error)
	Create(ctx context.Context, pet models.Pet) (models.Pet, error)
	Update(ctx context.Context, pet models.Pet) error
	Delete(ctx context.Context, id string) error
}

type SQLitePetRepository struct {
	database *sql.DB
}

func NewPetRepository(database *sql.DB) *SQLitePetRepository {
	return &SQLitePetRepository{database: database}
}

func (repository *SQLitePetRepository) FindByID(ctx context.Context, id string) (models.Pet, error) {
	var pet models.Pet
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, name, species, notes, created_at, updated_at FROM pets WHERE id = ?", id,
	).Scan(&pet.ID, &pet.Name, &pet.Species, &pet.Notes, &pet.CreatedAt, &pet.UpdatedAt)
	if err != nil {
		return models.Pet{}, fmt.Errorf("finding pet by id: %w", err)
	}
	return pet, nil
}

func (repository *SQLitePetRepository) FindAll(ctx context.Context) ([]models.Pet, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, name, species, notes, created_at, updated_at FROM pets ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("finding all pets: %w", err)
	}
	defer rows.Close()

	var pets []models.Pet
	for rows.Next() {
		var pet models.Pet
		if err := rows.Scan(&pet.ID, &pet.Name, &pet.Species, &pet.Notes, &pet.CreatedAt, &pet.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pet: %w", err)
		}
		pets = append(pets, pet)
	}
	return pets, rows.Err()
}

func (repository *SQLitePetRepository) Create(ctx context.Context, pet models.Pet) (models.Pet, error) {
	if pet.ID == "" {
		pet.ID = uuid.New().String()
	}
	now := time.Now()
	pet.CreatedAt = now
	pet.UpdatedAt = now

	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO pets (id, name, species, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		pet.ID, pet.Name, pet.Species, pet.Notes, pet.CreatedAt, pet.UpdatedAt,
	)
	if err != nil {
		return models.Pet{}, fmt.Errorf("creating pet: %w", err)
	}
	return pet, nil
}

func (repository *SQLitePetRepository) Update(ctx context.Context, pet models.Pet) error {
	pet.UpdatedAt = time.Now()
	_, err := repository.database.ExecContext(ctx,
		"UPDATE pets SET name = ?, species = ?, notes = ?, updated_at = ? WHERE id = ?",
		pet.Name, pet.Species, pet.Notes, pet.UpdatedAt, pet.ID,
	)
	if err != nil {
		return fmt.Errorf("updating pet: %w", err)
	}
	return nil
}

func (repository *SQLitePetRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM pets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting pet: %w", err)
	}
	return nil
}
