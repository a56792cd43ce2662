package handler

import (
	"context"
	"net/http"
	"time"

	"citypee/internal/container"
	"citypee/internal/dataset"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// DependencyStatus is the state of one backing service.
type DependencyStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version"`
	Service      string                      `json:"service"`
	Dataset      dataset.Status              `json:"dataset"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// Check handles GET /health. A failing dependency degrades the status but
// the endpoint still answers 200; only the process being up is required.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC(),
		Version:      "1.0.0",
		Service:      "citypee-api",
		Dependencies: make(map[string]DependencyStatus, 2),
	}

	// loads the dataset on first call
	if _, err := h.container.Dataset.Toilets(ctx); err != nil {
		response.Status = "degraded"
	}
	response.Dataset = h.container.Dataset.Status()

	response.Dependencies["redis"] = DependencyStatus{Status: "disabled"}
	if h.container.RedisClient != nil {
		response.Dependencies["redis"] = dependency(h.container.RedisClient.Health(ctx), &response)
	}

	response.Dependencies["database"] = DependencyStatus{Status: "disabled"}
	if h.container.DB != nil {
		stats, err := h.container.DB.Health(ctx)
		status := dependency(err, &response)
		if err == nil {
			status.Detail = stats.String()
		}
		response.Dependencies["database"] = status
	}

	if response.Status != "healthy" {
		log.WithField("dependencies", response.Dependencies).Warn("Health check degraded")
	}
	respondJSON(w, log, http.StatusOK, response)
}

func dependency(err error, response *HealthResponse) DependencyStatus {
	if err != nil {
		response.Status = "degraded"
		return DependencyStatus{Status: "down", Detail: err.Error()}
	}
	return DependencyStatus{Status: "up"}
}
