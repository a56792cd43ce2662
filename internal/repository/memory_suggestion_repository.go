package repository

import (
	"context"
	"fmt"
	"sync"

	"citypee/internal/domain"
	"citypee/internal/geo"
)

// memorySuggestionRepository keeps suggestions for the lifetime of the process
type memorySuggestionRepository struct {
	mu          sync.RWMutex
	suggestions []*domain.Suggestion
	ids         map[string]struct{}
}

// NewMemorySuggestionRepository creates an in-process suggestion store
func NewMemorySuggestionRepository() SuggestionRepository {
	return &memorySuggestionRepository{
		ids: make(map[string]struct{}),
	}
}

func (r *memorySuggestionRepository) Create(ctx context.Context, suggestion *domain.Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[suggestion.ID]; exists {
		return fmt.Errorf("suggestion %s already exists", suggestion.ID)
	}
	stored := *suggestion
	r.suggestions = append(r.suggestions, &stored)
	r.ids[suggestion.ID] = struct{}{}
	return nil
}

func (r *memorySuggestionRepository) ListNear(ctx context.Context, lat, lng, radiusMeters float64) ([]domain.Toilet, error) {
	box := geo.BoundingBox(lat, lng, radiusMeters)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var near []domain.Toilet
	for _, s := range r.suggestions {
		if box.Contains(s.Lat, s.Lng) {
			near = append(near, s.AsToilet())
		}
	}
	return near, nil
}

func (r *memorySuggestionRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.suggestions)), nil
}
