package duplicate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypee/internal/domain"
	"citypee/internal/repository"
	"citypee/pkg/logger"
)

type stubProvider struct {
	toilets []domain.Toilet
	err     error
}

func (s *stubProvider) Toilets(ctx context.Context) ([]domain.Toilet, error) {
	return s.toilets, s.err
}

type failingRepository struct {
	repository.SuggestionRepository
}

func (failingRepository) ListNear(ctx context.Context, lat, lng, radius float64) ([]domain.Toilet, error) {
	return nil, errors.New("connection refused")
}

var londonToilets = []domain.Toilet{
	{ID: "westminster", Lat: 51.5007, Lng: -0.1246, Source: "dataset"},
	{ID: "kings-cross", Lat: 51.5308, Lng: -0.1239, Source: "dataset"},
}

func TestCheckDuplicate_ExactMatchIsZeroMeters(t *testing.T) {
	d := NewDetector(&stubProvider{toilets: londonToilets}, nil, DefaultThresholdMeters, logger.NewNop())
	validation := domain.NewValidationResult(domain.APIVersionV1)

	res := d.CheckDuplicate(context.Background(), 51.5007, -0.1246, validation)

	require.True(t, res.IsDuplicate)
	require.NotNil(t, res.NearestDistance)
	assert.Equal(t, 0.0, *res.NearestDistance)
	assert.Equal(t, "westminster", res.NearestToiletID)
	assert.Equal(t, 2, res.Checked)

	assert.True(t, validation.IsDuplicate)
	require.NotNil(t, validation.DuplicateDistance)
	assert.Equal(t, 0.0, *validation.DuplicateDistance)
	assert.Equal(t, "westminster", validation.NearestToiletID)
}

func TestCheckDuplicate_Threshold(t *testing.T) {
	d := NewDetector(&stubProvider{toilets: londonToilets}, nil, 50, logger.NewNop())

	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{name: "about 30m north", lat: 51.5007 + 30/111195.0, lng: -0.1246, want: true},
		{name: "about 49m north", lat: 51.5007 + 49/111195.0, lng: -0.1246, want: true},
		{name: "about 60m north", lat: 51.5007 + 60/111195.0, lng: -0.1246, want: false},
		{name: "trafalgar square", lat: 51.5080, lng: -0.1281, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validation := domain.NewValidationResult(domain.APIVersionV1)
			res := d.CheckDuplicate(context.Background(), tt.lat, tt.lng, validation)

			assert.Equal(t, tt.want, res.IsDuplicate)
			assert.Equal(t, tt.want, validation.IsDuplicate)
			assert.NotNil(t, res.NearestDistance)
			if !tt.want {
				assert.Nil(t, validation.DuplicateDistance)
				assert.GreaterOrEqual(t, *res.NearestDistance, 50.0)
			}
		})
	}
}

func TestCheckDuplicate_PersistedSuggestions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySuggestionRepository()
	d := NewDetector(&stubProvider{}, repo, DefaultThresholdMeters, logger.NewNop())

	first := d.CheckDuplicate(ctx, 51.5074, -0.1278, nil)
	assert.False(t, first.IsDuplicate)
	assert.Nil(t, first.NearestDistance)

	require.NoError(t, repo.Create(ctx, &domain.Suggestion{ID: "s-1", Lat: 51.5074, Lng: -0.1278, CreatedAt: time.Now()}))

	second := d.CheckDuplicate(ctx, 51.5074, -0.1278, nil)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, "s-1", second.NearestToiletID)
	assert.Equal(t, 0.0, *second.NearestDistance)
}

func TestCheckDuplicate_DatasetFailureFailsOpen(t *testing.T) {
	d := NewDetector(&stubProvider{err: errors.New("file not found")}, nil, DefaultThresholdMeters, logger.NewNop())
	validation := domain.NewValidationResult(domain.APIVersionV1)

	res := d.CheckDuplicate(context.Background(), 51.5, -0.12, validation)

	assert.False(t, res.IsDuplicate)
	assert.Error(t, res.Err)
	assert.True(t, validation.IsValid)
	require.Len(t, validation.Warnings, 1)
	assert.Equal(t, domain.IssueDuplicateCheckOff, validation.Warnings[0].Code)
	assert.Equal(t, domain.TierCore, validation.Warnings[0].Tier)
}

func TestCheckDuplicate_StoreFailureStillUsesDataset(t *testing.T) {
	d := NewDetector(&stubProvider{toilets: londonToilets}, failingRepository{}, DefaultThresholdMeters, logger.NewNop())
	validation := domain.NewValidationResult(domain.APIVersionV1)

	res := d.CheckDuplicate(context.Background(), 51.5308, -0.1239, validation)

	assert.True(t, res.IsDuplicate)
	assert.Error(t, res.Err)
	assert.Len(t, validation.Warnings, 1)
}

func TestNewDetector_DefaultsThreshold(t *testing.T) {
	d := NewDetector(&stubProvider{}, nil, 0, logger.NewNop())
	assert.Equal(t, DefaultThresholdMeters, d.Threshold())
}
