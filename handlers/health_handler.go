package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/arjun-computer-geek/saas-demo/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 3 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping calls f
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler probing the named dependencies
func NewHealthHandler(checks map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that all dependencies are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Warn("dependency health check failed",
				zap.String("dependency", name),
				zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
