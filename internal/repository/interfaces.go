package repository

import (
	"context"

	"citypee/internal/domain"
)

// SuggestionRepository persists accepted suggestions
type SuggestionRepository interface {
	// Create stores a new suggestion
	Create(ctx context.Context, suggestion *domain.Suggestion) error

	// ListNear returns suggestions inside the bounding box of radiusMeters
	// around lat/lng. Callers compute exact distances themselves.
	ListNear(ctx context.Context, lat, lng, radiusMeters float64) ([]domain.Toilet, error)

	// Count returns the number of stored suggestions
	Count(ctx context.Context) (int64, error)
}
