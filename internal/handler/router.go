package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"citypee/internal/container"
	"citypee/internal/middleware"
	apperrors "citypee/pkg/errors"
)

// NewRouter builds the HTTP routes for the container's services.
func NewRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins), log))
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Recoverer(log))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	healthHandler := NewHealthHandler(c)
	suggestionHandler := NewSuggestionHandler(c.SuggestionService, log)
	metricsHandler := NewMetricsHandler(c.Recorder, c.SummaryService, !cfg.IsProduction(), log)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.BurstLimit(cfg.BurstLimitPerMinute, log))

		r.Post("/suggest", suggestionHandler.SuggestV1)
		r.Post("/v2/suggest", suggestionHandler.SuggestV2)

		r.Get("/metrics", metricsHandler.Metrics)
		r.Post("/metrics/reset", metricsHandler.Reset)
		r.Get("/validation/summary", metricsHandler.Summary)
		r.Get("/monitoring", metricsHandler.Monitoring)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, apperrors.NewNotFoundError("Endpoint not found"))
	})

	log.Info("Router configured successfully")
	return r
}
