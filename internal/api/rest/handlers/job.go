package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/glowdesk/automations/internal/api/rest/middleware"
	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/internal/repository/postgres"
	"github.com/glowdesk/automations/pkg/logger"
)

// JobHandler exposes the scheduled job queue for inspection. Business owners
// use this to see upcoming sends and durable failures.
type JobHandler struct {
	logger *logger.Logger
	jobs   *postgres.JobRepository
}

// NewJobHandler creates a new job handler
func NewJobHandler(log *logger.Logger, jobs *postgres.JobRepository) *JobHandler {
	return &JobHandler{
		logger: log,
		jobs:   jobs,
	}
}

// List retrieves scheduled jobs for the business. Supports ?status= and
// pagination query parameters.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	if status != "" {
		switch status {
		case models.JobStatusPending, models.JobStatusDispatched, models.JobStatusFailed, models.JobStatusCancelled:
		default:
			h.respondError(w, http.StatusBadRequest, "Unknown job status")
			return
		}
	}

	limit, offset := parsePagination(r)

	jobs, err := h.jobs.List(r.Context(), middleware.GetBusinessID(r.Context()), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list jobs", logger.Err(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	if jobs == nil {
		jobs = []*models.ScheduledJob{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *JobHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
