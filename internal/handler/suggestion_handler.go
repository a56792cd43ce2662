package handler

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"citypee/internal/domain"
	"citypee/internal/ratelimit"
	"citypee/internal/service"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

const maxSuggestionBytes = 64 << 10

// SuggestionHandler serves the v1 and v2 suggestion endpoints.
type SuggestionHandler struct {
	suggestions *service.SuggestionService
	logger      *logger.Logger
}

// NewSuggestionHandler creates a suggestion handler.
func NewSuggestionHandler(suggestions *service.SuggestionService, log *logger.Logger) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, logger: log}
}

// SuggestionData is the payload of an accepted suggestion.
type SuggestionData struct {
	SuggestionID  string                 `json:"suggestionId"`
	SanitizedData map[string]interface{} `json:"sanitizedData"`
}

// ValidationView is a validation result with errors grouped by tier.
type ValidationView struct {
	*domain.ValidationResult
	ErrorsByTier map[domain.Tier][]domain.ValidationIssue `json:"errorsByTier"`
}

// SuggestionResponse is the body of every suggestion endpoint response.
type SuggestionResponse struct {
	Success    bool                `json:"success"`
	Data       *SuggestionData     `json:"data,omitempty"`
	Error      *apperrors.AppError `json:"error,omitempty"`
	Validation *ValidationView     `json:"validation,omitempty"`
}

// SuggestV1 handles POST /api/suggest
func (h *SuggestionHandler) SuggestV1(w http.ResponseWriter, r *http.Request) {
	h.suggest(w, r, domain.APIVersionV1)
}

// SuggestV2 handles POST /api/v2/suggest
func (h *SuggestionHandler) SuggestV2(w http.ResponseWriter, r *http.Request) {
	h.suggest(w, r, domain.APIVersionV2)
}

func (h *SuggestionHandler) suggest(w http.ResponseWriter, r *http.Request, version domain.APIVersion) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSuggestionBytes))
	if err != nil {
		respondError(w, h.logger, apperrors.NewMalformedInputError("Request body could not be read", err))
		return
	}

	res := h.suggestions.Submit(r.Context(), service.SubmitRequest{
		Body:      body,
		IPAddress: ratelimit.ExtractIP(r),
		Version:   version,
	})
	setRateLimitHeaders(w, res.RateLimit)

	resp := SuggestionResponse{Success: res.Error == nil, Error: res.Error}
	if res.Validation != nil {
		resp.Validation = &ValidationView{
			ValidationResult: res.Validation,
			ErrorsByTier:     res.Validation.ErrorsByTier(),
		}
	}

	if res.Error != nil {
		if res.Error.StatusCode >= http.StatusInternalServerError {
			h.logger.WithError(res.Error).Error("Suggestion failed")
		}
		respondJSON(w, h.logger, res.Error.StatusCode, resp)
		return
	}

	resp.Data = &SuggestionData{
		SuggestionID:  res.SuggestionID,
		SanitizedData: res.SanitizedData,
	}
	respondJSON(w, h.logger, http.StatusCreated, resp)
}

func setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	if info == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
	if !info.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(info.RetryAfter.Seconds()))))
	}
}
