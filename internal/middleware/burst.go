package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"citypee/internal/ratelimit"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

// BurstLimit caps requests per client IP per minute across the API,
// independently of the suggestion quota. A non-positive limit disables it.
func BurstLimit(perMinute int, log *logger.Logger) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ratelimit.HashIP(ratelimit.ExtractIP(r)), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			log.WithField("path", r.URL.Path).Warn("Burst limit exceeded")
			WriteError(w, apperrors.NewRateLimitError("Too many requests"))
		}),
	)
}
