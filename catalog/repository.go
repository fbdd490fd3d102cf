package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownService signals that no active listing exists for the id.
var ErrUnknownService = errors.New("catalog: unknown service")

// Repository provides read access to service listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve returns the provider offering the given service.
func (r *Repository) Resolve(ctx context.Context, serviceID string) (string, error) {
	const query = `
		SELECT provider_id
		FROM services
		WHERE id = $1 AND active
	`

	var providerID string
	err := r.pool.QueryRow(ctx, query, serviceID).Scan(&providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownService
		}
		return "", fmt.Errorf("catalog: resolve service: %w", err)
	}

	return providerID, nil
}

// GetByID fetches a full listing by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Listing, error) {
	const query = `
		SELECT id, provider_id, title, active, created_at
		FROM services
		WHERE id = $1
	`

	var listing Listing
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&listing.ID,
		&listing.ProviderID,
		&listing.Title,
		&listing.Active,
		&listing.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrUnknownService
		}
		return Listing{}, fmt.Errorf("catalog: query by id: %w", err)
	}

	return listing, nil
}

// List fetches up to limit active listings ordered by title.
func (r *Repository) List(ctx context.Context, limit int) ([]Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, provider_id, title, active, created_at
		FROM services
		WHERE active
		ORDER BY title ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	listings := make([]Listing, 0, limit)
	for rows.Next() {
		var listing Listing
		if err := rows.Scan(&listing.ID, &listing.ProviderID, &listing.Title, &listing.Active, &listing.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate listings: %w", err)
	}

	return listings, nil
}
