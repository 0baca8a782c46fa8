package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/api/rest/middleware"
	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/internal/services"
	"github.com/glowdesk/automations/pkg/logger"
)

// WorkflowHandler handles workflow-related HTTP requests
type WorkflowHandler struct {
	logger  *logger.Logger
	service *services.WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(log *logger.Logger, service *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		logger:  log,
		service: service,
	}
}

// Create creates a new workflow
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	businessID := middleware.GetBusinessID(r.Context())

	workflow, err := h.service.Create(r.Context(), businessID, &req)
	if err != nil {
		if isValidationError(err) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to create workflow", logger.Err(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to create workflow")
		return
	}

	h.respondJSON(w, http.StatusCreated, workflow)
}

// Get retrieves a workflow by ID
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	workflow, err := h.service.Get(r.Context(), middleware.GetBusinessID(r.Context()), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, workflow)
}

// List retrieves all workflows of the business
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.service.List(r.Context(), middleware.GetBusinessID(r.Context()))
	if err != nil {
		h.logger.Error("Failed to list workflows", logger.Err(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list workflows")
		return
	}

	if workflows == nil {
		workflows = []models.Workflow{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": workflows,
		"total":     len(workflows),
	})
}

// Update replaces a workflow definition
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req models.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	workflow, err := h.service.Update(r.Context(), middleware.GetBusinessID(r.Context()), id, &req)
	if err != nil {
		if isValidationError(err) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondLookupError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, workflow)
}

// Delete deletes a workflow and cancels its pending jobs
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetBusinessID(r.Context()), id); err != nil {
		h.respondLookupError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Activate turns a workflow on
func (h *WorkflowHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	workflow, err := h.service.Activate(r.Context(), middleware.GetBusinessID(r.Context()), id)
	if err != nil {
		if isValidationError(err) {
			h.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.respondLookupError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, workflow)
}

// Deactivate turns a workflow off and cancels its pending jobs
func (h *WorkflowHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	workflow, err := h.service.Deactivate(r.Context(), middleware.GetBusinessID(r.Context()), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, workflow)
}

// Helper methods

func (h *WorkflowHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid workflow ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *WorkflowHandler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	h.logger.Error("Workflow operation failed", logger.Err(err))
	h.respondError(w, http.StatusInternalServerError, "Workflow operation failed")
}

func (h *WorkflowHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *WorkflowHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "validation failed") ||
		strings.Contains(msg, "cannot be activated")
}
