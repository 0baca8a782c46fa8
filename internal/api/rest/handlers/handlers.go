package handlers

import (
	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/repository/postgres"
	"github.com/glowdesk/automations/internal/services"
	"github.com/glowdesk/automations/pkg/logger"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	Health   *HealthHandler
	Workflow *WorkflowHandler
	Event    *EventHandler
	Job      *JobHandler
}

// HealthCheckers holds all health check dependencies
type HealthCheckers struct {
	DB    HealthChecker
	Redis HealthChecker
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	log *logger.Logger,
	workflowService *services.WorkflowService,
	bus *engine.EventBus,
	jobRepo *postgres.JobRepository,
	eventRepo *postgres.EventRepository,
	healthCheckers *HealthCheckers,
	version string,
) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(log, healthCheckers.DB, healthCheckers.Redis, jobRepo, version),
		Workflow: NewWorkflowHandler(log, workflowService),
		Event:    NewEventHandler(log, bus, eventRepo),
		Job:      NewJobHandler(log, jobRepo),
	}
}
