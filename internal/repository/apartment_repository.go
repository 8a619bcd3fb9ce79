package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

// ApartmentRepository reads apartment metadata.
type ApartmentRepository struct {
	db *sqlx.DB
}

// NewApartmentRepository constructs the repository.
func NewApartmentRepository(db *sqlx.DB) *ApartmentRepository {
	return &ApartmentRepository{db: db}
}

// GetByID fetches one apartment. sql.ErrNoRows is preserved in the returned error.
func (r *ApartmentRepository) GetByID(ctx context.Context, id string) (*models.Apartment, error) {
	const query = `SELECT id, name, slug, timezone, active, created_at, updated_at FROM apartments WHERE id = $1`
	var apartment models.Apartment
	if err := r.db.GetContext(ctx, &apartment, query, id); err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}
	return &apartment, nil
}

// ListActive returns all active apartments ordered by name.
func (r *ApartmentRepository) ListActive(ctx context.Context) ([]models.Apartment, error) {
	const query = `SELECT id, name, slug, timezone, active, created_at, updated_at FROM apartments WHERE active = TRUE ORDER BY name ASC`
	var apartments []models.Apartment
	if err := r.db.SelectContext(ctx, &apartments, query); err != nil {
		return nil, fmt.Errorf("list active apartments: %w", err)
	}
	return apartments, nil
}
