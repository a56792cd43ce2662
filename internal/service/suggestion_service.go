package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"citypee/internal/domain"
	"citypee/internal/duplicate"
	"citypee/internal/metrics"
	"citypee/internal/ratelimit"
	"citypee/internal/repository"
	"citypee/internal/validation"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

// SubmitRequest is one suggestion submission.
type SubmitRequest struct {
	Body      []byte
	IPAddress string
	Version   domain.APIVersion
}

// SubmitResult carries everything a handler needs to answer a submission.
// Error is nil only for an accepted suggestion.
type SubmitResult struct {
	Outcome       metrics.Outcome
	SuggestionID  string
	SanitizedData map[string]interface{}
	Validation    *domain.ValidationResult
	RateLimit     *domain.RateLimitInfo
	Error         *apperrors.AppError
}

// SuggestionService runs the submission pipeline: quota reservation,
// validation, duplicate check, persistence and metrics, in that order. The
// reserved quota unit is only kept when the suggestion is stored.
type SuggestionService struct {
	engine      *validation.Engine
	detector    *duplicate.Detector
	limiter     ratelimit.Limiter
	suggestions repository.SuggestionRepository
	recorder    *metrics.Recorder
	logger      *logger.Logger
	now         func() time.Time

	// placeMu makes the duplicate check and the insert one step, so two
	// concurrent submissions for the same spot cannot both be stored.
	placeMu sync.Mutex
}

// NewSuggestionService wires the pipeline stages together.
func NewSuggestionService(
	engine *validation.Engine,
	detector *duplicate.Detector,
	limiter ratelimit.Limiter,
	suggestions repository.SuggestionRepository,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *SuggestionService {
	return &SuggestionService{
		engine:      engine,
		detector:    detector,
		limiter:     limiter,
		suggestions: suggestions,
		recorder:    recorder,
		logger:      log.Component("suggestions"),
		now:         time.Now,
	}
}

// Submit validates and stores one suggestion. Failures are returned in the
// result, never as a Go error.
func (s *SuggestionService) Submit(ctx context.Context, req SubmitRequest) *SubmitResult {
	start := s.now()
	if req.Version != domain.APIVersionV2 {
		req.Version = domain.APIVersionV1
	}

	result := s.submit(ctx, req)

	if s.recorder.Enabled() {
		s.recorder.Record(metrics.Observation{
			Version:    req.Version,
			Outcome:    result.Outcome,
			Duration:   s.now().Sub(start),
			Validation: result.Validation,
		})
	}
	return result
}

func (s *SuggestionService) submit(ctx context.Context, req SubmitRequest) *SubmitResult {
	log := s.logger.WithFields(map[string]interface{}{
		"version": req.Version,
		"ip_hash": ratelimit.HashIP(req.IPAddress),
	})

	info, reservation, err := s.limiter.Reserve(ctx, req.IPAddress)
	if err != nil {
		log.WithError(err).Error("Rate limit check failed, allowing submission")
		info = nil
	}
	kept := false
	defer func() {
		if kept {
			return
		}
		if err := reservation.Cancel(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Error("Failed to release rate limit reservation")
		}
	}()
	if info != nil && !info.Allowed {
		log.WithField("retry_after", info.RetryAfter.String()).Warn("Suggestion rate limited")
		retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
		return &SubmitResult{
			Outcome:   metrics.OutcomeRateLimited,
			RateLimit: info,
			Error: apperrors.NewRateLimitError(
				fmt.Sprintf("Too many suggestions. Try again in %d seconds", retryAfter),
			).WithDetails(map[string]interface{}{
				"limit":      info.Limit,
				"retryAfter": retryAfter,
			}),
		}
	}

	outcome := s.engine.ValidateRequest(validation.Request{
		Body:      req.Body,
		IPAddress: req.IPAddress,
		Version:   req.Version,
	})
	result := &SubmitResult{
		SuggestionID:  outcome.SuggestionID,
		SanitizedData: outcome.SanitizedData,
		Validation:    outcome.Validation,
		RateLimit:     info,
		Error:         outcome.Error,
	}
	if outcome.Validation == nil {
		result.Outcome = metrics.OutcomeMalformed
		log.Debug("Rejected malformed suggestion body")
		return result
	}
	if !outcome.IsValid {
		result.Outcome = metrics.OutcomeInvalid
		log.WithField("errors", len(outcome.Validation.Errors)).Debug("Suggestion failed validation")
		return result
	}

	s.placeMu.Lock()
	defer s.placeMu.Unlock()

	check := s.detector.CheckDuplicate(ctx, outcome.Lat, outcome.Lng, outcome.Validation)
	if check.IsDuplicate {
		result.Outcome = metrics.OutcomeDuplicate
		result.Error = apperrors.NewDuplicateError(
			fmt.Sprintf("A toilet already exists %.2fm from this location", *check.NearestDistance),
		).WithDetails(map[string]interface{}{
			"nearestToiletId":   check.NearestToiletID,
			"duplicateDistance": *check.NearestDistance,
			"thresholdMeters":   s.detector.Threshold(),
		})
		log.WithField("nearest_toilet_id", check.NearestToiletID).Info("Rejected duplicate suggestion")
		return result
	}

	suggestion := &domain.Suggestion{
		ID:         outcome.SuggestionID,
		Lat:        outcome.Lat,
		Lng:        outcome.Lng,
		Properties: outcome.SanitizedData,
		Version:    req.Version,
		IPHash:     ratelimit.HashIP(req.IPAddress),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.suggestions.Create(ctx, suggestion); err != nil {
		log.WithError(err).Error("Failed to store suggestion")
		result.Outcome = metrics.OutcomeError
		result.Error = apperrors.NewInternalError("Failed to store suggestion", err)
		return result
	}

	kept = true
	if info != nil {
		info.Count++
		if info.Remaining > 0 {
			info.Remaining--
		}
	}

	result.Outcome = metrics.OutcomeAccepted
	log.WithField("suggestion_id", suggestion.ID).Info("Suggestion accepted")
	return result
}
