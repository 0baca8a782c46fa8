package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/glowdesk/automations/pkg/logger"
)

// HealthChecker defines the interface for health checking
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// JobQueue reports the depth of the scheduled job queue
type JobQueue interface {
	CountPending(ctx context.Context) (int64, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	logger  *logger.Logger
	db      HealthChecker
	redis   HealthChecker
	jobs    JobQueue
	version string
}

// NewHealthHandler creates a new health handler. jobs may be nil; the ready
// response then omits the queue depth.
func NewHealthHandler(log *logger.Logger, db, redis HealthChecker, jobs JobQueue, version string) *HealthHandler {
	return &HealthHandler{
		logger:  log,
		db:      db,
		redis:   redis,
		jobs:    jobs,
		version: version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Checks      map[string]string `json:"checks,omitempty"`
	PendingJobs *int64            `json:"pending_jobs,omitempty"`
}

// Health is a simple liveness endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Ready checks if the service is ready to accept traffic. Alongside the
// dependency pings it reports the pending job count, which is what pages
// usually start from when deliveries stall.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Errorf("Database health check failed: %v", err)
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if err := h.redis.Ping(ctx); err != nil {
		h.logger.Errorf("Redis health check failed: %v", err)
		checks["redis"] = "unhealthy"
		allHealthy = false
	} else {
		checks["redis"] = "healthy"
	}

	var pending *int64
	if h.jobs != nil {
		count, err := h.jobs.CountPending(ctx)
		if err != nil {
			// Queue depth is informational; a failed count does not flip
			// readiness on its own.
			h.logger.Warnf("Pending job count failed: %v", err)
		} else {
			pending = &count
		}
	}

	status := "ready"
	statusCode := http.StatusOK

	if !allHealthy {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:      status,
		Version:     h.version,
		Checks:      checks,
		PendingJobs: pending,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
