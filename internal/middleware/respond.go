package middleware

import (
	"net/http"

	"github.com/goccy/go-json"

	apperrors "citypee/pkg/errors"
)

// WriteError writes the standard JSON error envelope for appErr.
func WriteError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(apperrors.ErrorResponse{Success: false, Error: appErr})
}
