package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/validator"
)

// WorkflowRepository is the persistence the workflow service depends on
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	List(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobCanceller sweeps pending jobs when a workflow stops being active
type JobCanceller interface {
	CancelPendingByWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error)
}

// WorkflowService owns workflow definition lifecycle: create, update,
// activate, deactivate, delete. Deactivation and deletion sweep the pending
// job queue so already-scheduled actions never fire for a stopped workflow.
type WorkflowService struct {
	workflows WorkflowRepository
	jobs      JobCanceller
	validator *validator.Validator
	logger    *logger.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	workflows WorkflowRepository,
	jobs JobCanceller,
	v *validator.Validator,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		workflows: workflows,
		jobs:      jobs,
		validator: v,
		logger:    log,
	}
}

// Create creates a new workflow. Workflows created active must be complete;
// drafts may be partial.
func (s *WorkflowService) Create(ctx context.Context, businessID uuid.UUID, req *models.CreateWorkflowRequest) (*models.Workflow, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	workflow := &models.Workflow{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
	}

	if workflow.IsActive {
		if err := workflow.ValidateForActivation(); err != nil {
			return nil, err
		}
	}

	if err := s.workflows.Create(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.Info("Workflow created",
		logger.String("workflow_id", workflow.ID.String()),
		logger.String("business_id", businessID.String()),
		logger.String("trigger_kind", string(workflow.Trigger.Kind)),
		logger.Bool("is_active", workflow.IsActive),
	)

	return workflow, nil
}

// Get retrieves a workflow, scoped to the business
func (s *WorkflowService) Get(ctx context.Context, businessID, id uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow.BusinessID != businessID {
		// Cross-tenant lookups read as not found; existence must not leak.
		return nil, fmt.Errorf("workflow %s: %w", id, engine.ErrNotFound)
	}
	return workflow, nil
}

// List retrieves all workflows of a business
func (s *WorkflowService) List(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error) {
	return s.workflows.List(ctx, businessID)
}

// Update replaces a workflow definition. Deactivating via update sweeps the
// pending jobs of the workflow.
func (s *WorkflowService) Update(ctx context.Context, businessID, id uuid.UUID, req *models.UpdateWorkflowRequest) (*models.Workflow, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	workflow, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	wasActive := workflow.IsActive

	workflow.Name = req.Name
	workflow.Description = req.Description
	workflow.IsActive = req.IsActive
	workflow.Trigger = req.Trigger
	workflow.Actions = req.Actions

	if workflow.IsActive {
		if err := workflow.ValidateForActivation(); err != nil {
			return nil, err
		}
	}

	if err := s.workflows.Update(ctx, workflow); err != nil {
		return nil, err
	}

	if wasActive && !workflow.IsActive {
		s.sweepPendingJobs(ctx, workflow.ID)
	}

	return workflow, nil
}

// Activate turns a workflow on, after checking it is complete
func (s *WorkflowService) Activate(ctx context.Context, businessID, id uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.ValidateForActivation(); err != nil {
		return nil, err
	}

	if err := s.workflows.SetActive(ctx, id, true); err != nil {
		return nil, err
	}
	workflow.IsActive = true

	s.logger.Info("Workflow activated", logger.String("workflow_id", id.String()))
	return workflow, nil
}

// Deactivate turns a workflow off and cancels its pending jobs
func (s *WorkflowService) Deactivate(ctx context.Context, businessID, id uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	if err := s.workflows.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	workflow.IsActive = false

	s.sweepPendingJobs(ctx, id)

	s.logger.Info("Workflow deactivated", logger.String("workflow_id", id.String()))
	return workflow, nil
}

// Delete removes a workflow and cancels its pending jobs
func (s *WorkflowService) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	if _, err := s.Get(ctx, businessID, id); err != nil {
		return err
	}

	// Sweep before delete; the dispatcher's active re-check covers any job
	// claimed in between.
	s.sweepPendingJobs(ctx, id)

	if err := s.workflows.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Workflow deleted", logger.String("workflow_id", id.String()))
	return nil
}

func (s *WorkflowService) sweepPendingJobs(ctx context.Context, workflowID uuid.UUID) {
	cancelled, err := s.jobs.CancelPendingByWorkflow(ctx, workflowID)
	if err != nil {
		// The dispatcher re-checks workflow state before executing, so a
		// failed sweep degrades to lazy cancellation.
		s.logger.Error("Failed to cancel pending jobs",
			logger.String("workflow_id", workflowID.String()),
			logger.Err(err),
		)
		return
	}

	if cancelled > 0 {
		s.logger.Info("Cancelled pending jobs",
			logger.String("workflow_id", workflowID.String()),
			logger.Int64("count", cancelled),
		)
	}
}
