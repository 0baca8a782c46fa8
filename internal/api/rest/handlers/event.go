package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/glowdesk/automations/internal/api/rest/middleware"
	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/internal/repository/postgres"
	"github.com/glowdesk/automations/pkg/logger"
)

// EventHandler receives business events from internal producers and hands
// them to the bus.
type EventHandler struct {
	logger *logger.Logger
	bus    *engine.EventBus
	events *postgres.EventRepository
}

// NewEventHandler creates a new event handler
func NewEventHandler(log *logger.Logger, bus *engine.EventBus, events *postgres.EventRepository) *EventHandler {
	return &EventHandler{
		logger: log,
		bus:    bus,
		events: events,
	}
}

// Publish accepts an event and queues it for trigger matching. Always
// responds 202: matching outcome is invisible to the producer by design of
// the fire-and-forget contract.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req models.PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.Kind.Valid() {
		h.respondError(w, http.StatusBadRequest, "Unknown event kind")
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	event := &models.Event{
		BusinessID: middleware.GetBusinessID(r.Context()),
		Kind:       req.Kind,
		Payload:    req.Payload,
		OccurredAt: occurredAt,
	}

	h.bus.Publish(r.Context(), event)

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"event_id": event.ID.String(),
		"status":   "accepted",
	})
}

// List retrieves recent events of the business
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	events, err := h.events.List(r.Context(), middleware.GetBusinessID(r.Context()), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list events", logger.Err(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	if events == nil {
		events = []models.Event{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

func (h *EventHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *EventHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
