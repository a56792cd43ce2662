package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"citypee/internal/middleware"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

func respondJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, log *logger.Logger, appErr *apperrors.AppError) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(appErr).Error("Request failed")
	}
	middleware.WriteError(w, appErr)
}
