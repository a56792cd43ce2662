package repository

import (
	"context"
	"fmt"

	"citypee/internal/domain"
	"citypee/internal/geo"
	"citypee/pkg/database"
)

// suggestionRepository stores suggestions in PostgreSQL
type suggestionRepository struct {
	db *database.PostgresDB
}

// NewPostgresSuggestionRepository creates a new suggestion repository
func NewPostgresSuggestionRepository(db *database.PostgresDB) SuggestionRepository {
	return &suggestionRepository{
		db: db,
	}
}

// Create inserts a suggestion; properties are stored as JSONB
func (r *suggestionRepository) Create(ctx context.Context, suggestion *domain.Suggestion) error {
	query := `
		INSERT INTO suggestions (id, lat, lng, properties, api_version, ip_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		suggestion.ID,
		suggestion.Lat,
		suggestion.Lng,
		suggestion.Properties,
		string(suggestion.Version),
		suggestion.IPHash,
		suggestion.CreatedAt,
	).Scan(&suggestion.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}

	return nil
}

// ListNear selects suggestions inside the bounding box around lat/lng
func (r *suggestionRepository) ListNear(ctx context.Context, lat, lng, radiusMeters float64) ([]domain.Toilet, error) {
	query := `
		SELECT id, lat, lng, COALESCE(properties->>'name', '')
		FROM suggestions
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
	`

	box := geo.BoundingBox(lat, lng, radiusMeters)
	rows, err := r.db.Pool.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby suggestions: %w", err)
	}
	defer rows.Close()

	var toilets []domain.Toilet
	for rows.Next() {
		t := domain.Toilet{Source: "suggestion"}
		if err := rows.Scan(&t.ID, &t.Lat, &t.Lng, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion row: %w", err)
		}
		toilets = append(toilets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading suggestion rows: %w", err)
	}

	return toilets, nil
}

// Count returns the total number of stored suggestions
func (r *suggestionRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM suggestions`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count suggestions: %w", err)
	}

	return count, nil
}
