package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/validator"
)

type mockWorkflowRepository struct {
	createFunc    func(ctx context.Context, workflow *models.Workflow) error
	getByIDFunc   func(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	updateFunc    func(ctx context.Context, workflow *models.Workflow) error
	setActiveFunc func(ctx context.Context, id uuid.UUID, active bool) error
	deleteFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, workflow)
	}
	return nil
}

func (m *mockWorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, engine.ErrNotFound
}

func (m *mockWorkflowRepository) List(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error) {
	return nil, nil
}

func (m *mockWorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, workflow)
	}
	return nil
}

func (m *mockWorkflowRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *mockWorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockJobCanceller struct {
	cancelFunc func(ctx context.Context, workflowID uuid.UUID) (int64, error)
	swept      []uuid.UUID
}

func (m *mockJobCanceller) CancelPendingByWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	m.swept = append(m.swept, workflowID)
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, workflowID)
	}
	return 0, nil
}

func newTestService(repo *mockWorkflowRepository, jobs *mockJobCanceller) *WorkflowService {
	return NewWorkflowService(repo, jobs, validator.New(), logger.NewForTesting())
}

func storedWorkflow(businessID uuid.UUID, active bool) *models.Workflow {
	return &models.Workflow{
		ID:         uuid.New(),
		BusinessID: businessID,
		Name:       "thank you",
		IsActive:   active,
		Trigger:    models.TriggerSpec{Kind: models.TriggerAppointmentCompleted},
		Actions: models.ActionList{
			{Kind: models.ActionSendSMS, SMS: &models.SMSAction{Message: "thanks"}},
		},
	}
}

func repoReturning(workflow *models.Workflow) *mockWorkflowRepository {
	return &mockWorkflowRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
			return workflow, nil
		},
	}
}

func TestCreateActiveWorkflowRequiresCompleteDefinition(t *testing.T) {
	service := newTestService(&mockWorkflowRepository{}, &mockJobCanceller{})

	req := &models.CreateWorkflowRequest{
		Name:     "incomplete",
		IsActive: true,
		Trigger:  models.TriggerSpec{Kind: models.TriggerAppointmentBooked},
		// No actions.
	}

	_, err := service.Create(context.Background(), uuid.New(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be activated")
}

func TestCreateDraftAllowsIncompleteDefinition(t *testing.T) {
	var created *models.Workflow
	repo := &mockWorkflowRepository{
		createFunc: func(ctx context.Context, workflow *models.Workflow) error {
			created = workflow
			return nil
		},
	}
	service := newTestService(repo, &mockJobCanceller{})

	businessID := uuid.New()
	req := &models.CreateWorkflowRequest{
		Name:    "draft",
		Trigger: models.TriggerSpec{Kind: models.TriggerAppointmentBooked},
	}

	workflow, err := service.Create(context.Background(), businessID, req)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, businessID, workflow.BusinessID)
	assert.False(t, workflow.IsActive)
}

func TestGetCrossTenantReadsAsNotFound(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	workflow := storedWorkflow(owner, true)

	service := newTestService(repoReturning(workflow), &mockJobCanceller{})

	got, err := service.Get(context.Background(), owner, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, got.ID)

	_, err = service.Get(context.Background(), other, workflow.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestActivateRejectsIncompleteWorkflow(t *testing.T) {
	businessID := uuid.New()
	draft := storedWorkflow(businessID, false)
	draft.Actions = nil

	setActiveCalled := false
	repo := repoReturning(draft)
	repo.setActiveFunc = func(ctx context.Context, id uuid.UUID, active bool) error {
		setActiveCalled = true
		return nil
	}

	service := newTestService(repo, &mockJobCanceller{})

	_, err := service.Activate(context.Background(), businessID, draft.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be activated")
	assert.False(t, setActiveCalled)
}

func TestDeactivateSweepsPendingJobs(t *testing.T) {
	businessID := uuid.New()
	workflow := storedWorkflow(businessID, true)

	jobs := &mockJobCanceller{
		cancelFunc: func(ctx context.Context, workflowID uuid.UUID) (int64, error) {
			return 3, nil
		},
	}
	service := newTestService(repoReturning(workflow), jobs)

	got, err := service.Deactivate(context.Background(), businessID, workflow.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.Len(t, jobs.swept, 1)
	assert.Equal(t, workflow.ID, jobs.swept[0])
}

func TestDeactivateSurvivesSweepFailure(t *testing.T) {
	businessID := uuid.New()
	workflow := storedWorkflow(businessID, true)

	jobs := &mockJobCanceller{
		cancelFunc: func(ctx context.Context, workflowID uuid.UUID) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	service := newTestService(repoReturning(workflow), jobs)

	// The dispatcher re-checks workflow state, so a failed sweep is lazy
	// cancellation, not an error surfaced to the caller.
	got, err := service.Deactivate(context.Background(), businessID, workflow.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestUpdateDeactivationSweepsPendingJobs(t *testing.T) {
	businessID := uuid.New()
	workflow := storedWorkflow(businessID, true)

	jobs := &mockJobCanceller{}
	service := newTestService(repoReturning(workflow), jobs)

	req := &models.UpdateWorkflowRequest{
		Name:     workflow.Name,
		IsActive: false,
		Trigger:  workflow.Trigger,
		Actions:  workflow.Actions,
	}

	got, err := service.Update(context.Background(), businessID, workflow.ID, req)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, jobs.swept, 1)
}

func TestUpdateStayingActiveDoesNotSweep(t *testing.T) {
	businessID := uuid.New()
	workflow := storedWorkflow(businessID, true)

	jobs := &mockJobCanceller{}
	service := newTestService(repoReturning(workflow), jobs)

	req := &models.UpdateWorkflowRequest{
		Name:     "renamed",
		IsActive: true,
		Trigger:  workflow.Trigger,
		Actions:  workflow.Actions,
	}

	got, err := service.Update(context.Background(), businessID, workflow.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Empty(t, jobs.swept)
}

func TestDeleteSweepsBeforeRemoving(t *testing.T) {
	businessID := uuid.New()
	workflow := storedWorkflow(businessID, true)

	var order []string
	repo := repoReturning(workflow)
	repo.deleteFunc = func(ctx context.Context, id uuid.UUID) error {
		order = append(order, "delete")
		return nil
	}
	jobs := &mockJobCanceller{
		cancelFunc: func(ctx context.Context, workflowID uuid.UUID) (int64, error) {
			order = append(order, "sweep")
			return 1, nil
		},
	}
	service := newTestService(repo, jobs)

	require.NoError(t, service.Delete(context.Background(), businessID, workflow.ID))
	assert.Equal(t, []string{"sweep", "delete"}, order)
}
