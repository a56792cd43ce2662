// Package duplicate flags suggestions that lie too close to a toilet the
// service already knows about.
package duplicate

import (
	"context"
	"fmt"
	"math"

	"citypee/internal/dataset"
	"citypee/internal/domain"
	"citypee/internal/geo"
	"citypee/internal/repository"
	"citypee/pkg/logger"
)

// DefaultThresholdMeters is the radius inside which a point is a duplicate.
const DefaultThresholdMeters = 50.0

// Detector compares candidate points against the toilet dataset and the
// suggestions accepted so far.
type Detector struct {
	provider    dataset.Provider
	suggestions repository.SuggestionRepository
	threshold   float64
	logger      *logger.Logger
}

// NewDetector creates a detector. suggestions may be nil.
func NewDetector(provider dataset.Provider, suggestions repository.SuggestionRepository, thresholdMeters float64, log *logger.Logger) *Detector {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}
	return &Detector{
		provider:    provider,
		suggestions: suggestions,
		threshold:   thresholdMeters,
		logger:      log.Component("duplicate"),
	}
}

// Threshold returns the duplicate radius in meters.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// CheckDuplicate finds the nearest known toilet to lat/lng. A source that
// cannot be read is skipped: the failure is logged, returned in Err and
// added to validation as a warning, and never blocks the submission.
// When the point is a duplicate, validation is annotated with the distance.
func (d *Detector) CheckDuplicate(ctx context.Context, lat, lng float64, validation *domain.ValidationResult) domain.DuplicateCheck {
	var (
		result  domain.DuplicateCheck
		nearest = math.Inf(1)
	)

	consider := func(toilets []domain.Toilet) {
		for _, t := range toilets {
			dist := geo.Haversine(lat, lng, t.Lat, t.Lng)
			result.Checked++
			if dist < nearest {
				nearest = dist
				result.NearestToiletID = t.ID
			}
		}
	}

	toilets, err := d.provider.Toilets(ctx)
	if err != nil {
		d.sourceFailed(&result, validation, "toilet dataset", err)
	} else {
		consider(toilets)
	}

	if d.suggestions != nil {
		near, err := d.suggestions.ListNear(ctx, lat, lng, d.threshold)
		if err != nil {
			d.sourceFailed(&result, validation, "suggestion store", err)
		} else {
			consider(near)
		}
	}

	if math.IsInf(nearest, 1) {
		return result
	}

	rounded := math.Round(nearest*100) / 100
	result.NearestDistance = &rounded
	result.IsDuplicate = nearest < d.threshold

	if validation != nil && result.IsDuplicate {
		validation.IsDuplicate = true
		validation.DuplicateDistance = &rounded
		validation.NearestToiletID = result.NearestToiletID
	}
	return result
}

func (d *Detector) sourceFailed(result *domain.DuplicateCheck, validation *domain.ValidationResult, source string, err error) {
	d.logger.WithError(err).WithField("source", source).Error("Duplicate check source unavailable, allowing submission")
	if result.Err == nil {
		result.Err = fmt.Errorf("%s unavailable: %w", source, err)
	}
	if validation != nil {
		validation.AddWarning(domain.ValidationIssue{
			Field:   "location",
			Code:    domain.IssueDuplicateCheckOff,
			Message: fmt.Sprintf("Could not check the %s for nearby toilets", source),
			Tier:    domain.TierCore,
		})
	}
}
