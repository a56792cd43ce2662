package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

// Recoverer turns a handler panic into a logged 500 carrying the standard
// error envelope. http.ErrAbortHandler is re-panicked so net/http can abort
// the connection.
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.WithFields(map[string]interface{}{
					"request_id": GetRequestID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"panic":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
				}).Error("Recovered from panic")

				WriteError(w, apperrors.NewInternalError("An unexpected error occurred", fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
