package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderLister names the configured identity providers
type ProviderLister interface {
	Names() []string
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store     Pinger
	providers ProviderLister
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store Pinger, providers ProviderLister, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		providers: providers,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only; returns 200 whenever the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	switch {
	case h.store == nil:
		checks["store"] = "not_initialized"
		allHealthy = false
	default:
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("store health check failed", zap.Error(err))
			checks["store"] = "unhealthy"
			allHealthy = false
		} else {
			checks["store"] = "healthy"
		}
	}

	// No provider is not fatal; the site stays browsable without logins
	if h.providers == nil || len(h.providers.Names()) == 0 {
		checks["providers"] = "none_configured"
	} else {
		checks["providers"] = "configured"
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

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
