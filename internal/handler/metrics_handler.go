package handler

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"citypee/internal/metrics"
	"citypee/internal/service"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

// MetricsHandler serves metrics exposition, summaries, monitoring and reset.
type MetricsHandler struct {
	recorder   *metrics.Recorder
	summary    *service.SummaryService
	allowReset bool
	logger     *logger.Logger
}

// NewMetricsHandler creates a metrics handler. allowReset is false in
// production.
func NewMetricsHandler(recorder *metrics.Recorder, summary *service.SummaryService, allowReset bool, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		recorder:   recorder,
		summary:    summary,
		allowReset: allowReset,
		logger:     log,
	}
}

// SummaryResponse wraps a cached summary body.
type SummaryResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Metrics handles GET /api/metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.recorder.ServeHTTP(w, r)
}

// Summary handles GET /api/validation/summary
func (h *MetricsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	window, err := metrics.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		respondError(w, h.logger, apperrors.NewInvalidParameterError(err.Error(), map[string]interface{}{
			"parameter": "window",
			"allowed":   []string{"1h", "24h", "7d", "all"},
		}))
		return
	}

	entry, err := h.summary.Summary(ctx, window)
	if err != nil {
		respondError(w, h.logger, apperrors.NewInternalError("Failed to build validation summary", err))
		return
	}

	w.Header().Set("ETag", entry.ETag)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Header().Set("X-Metrics-Level", h.summary.Level())

	if h.summary.NotModified(ctx, window, r.Header.Get("If-None-Match")) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, SummaryResponse{Success: true, Data: entry.Body})
}

// Monitoring handles GET /api/monitoring. Collector failures are reported
// in the body with a 200 status.
func (h *MetricsHandler) Monitoring(w http.ResponseWriter, r *http.Request) {
	var requested []string
	if raw := r.URL.Query().Get("metrics"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				requested = append(requested, name)
			}
		}
	}

	res := h.summary.Collect(r.Context(), requested)
	respondJSON(w, h.logger, http.StatusOK, res)
}

// Reset handles POST /api/metrics/reset
func (h *MetricsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.allowReset {
		h.logger.Warn("Attempted metrics reset in production")
		respondError(w, h.logger, apperrors.NewForbiddenError("Metrics reset is disabled in production"))
		return
	}

	if err := h.summary.Reset(r.Context()); err != nil {
		respondError(w, h.logger, apperrors.NewInternalError("Failed to clear summary cache", err))
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Metrics reset",
	})
}
