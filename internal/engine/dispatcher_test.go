package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
)

type mockDispatchQueue struct {
	getDueJobsFunc func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error)

	dispatched  []uuid.UUID
	failed      []uuid.UUID
	cancelled   []uuid.UUID
	rescheduled []uuid.UUID

	lastAttempts  int
	lastDueAt     time.Time
	lastLastError string
}

func (m *mockDispatchQueue) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	if m.getDueJobsFunc != nil {
		return m.getDueJobsFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockDispatchQueue) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	m.dispatched = append(m.dispatched, id)
	return nil
}

func (m *mockDispatchQueue) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	m.failed = append(m.failed, id)
	m.lastAttempts = attempts
	m.lastLastError = lastError
	return nil
}

func (m *mockDispatchQueue) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockDispatchQueue) Reschedule(ctx context.Context, id uuid.UUID, attempts int, dueAt time.Time, lastError string) error {
	m.rescheduled = append(m.rescheduled, id)
	m.lastAttempts = attempts
	m.lastDueAt = dueAt
	m.lastLastError = lastError
	return nil
}

type mockWorkflowStore struct {
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	listActiveFunc func(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error)
}

func (m *mockWorkflowStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *mockWorkflowStore) ListActive(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, businessID)
	}
	return nil, nil
}

type mockSMSExecutor struct {
	sendFunc func(ctx context.Context, to, message string) error
	sent     []string
}

func (m *mockSMSExecutor) Send(ctx context.Context, to, message string) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, to, message); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, message)
	return nil
}

type mockComposer struct {
	composeFunc func(ctx context.Context, body, tone string) (string, error)
}

func (m *mockComposer) Compose(ctx context.Context, body, tone string) (string, error) {
	if m.composeFunc != nil {
		return m.composeFunc(ctx, body, tone)
	}
	return body, nil
}

func smsJob(workflowID uuid.UUID, message, phone string) *models.ScheduledJob {
	action := models.ActionSpec{
		Kind: models.ActionSendSMS,
		SMS:  &models.SMSAction{Message: message},
	}
	return &models.ScheduledJob{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		WorkflowID: workflowID,
		ActionKind: models.ActionSendSMS,
		Action:     action,
		Context: models.TemplateContext{
			ClientID: uuid.New(),
			Client:   models.ClientContext{FirstName: "Jane", Phone: phone},
			Business: models.BusinessContext{Name: "Acme Spa"},
		},
		DueAt:  time.Now().Add(-time.Minute),
		Status: models.JobStatusPending,
	}
}

func activeWorkflowStore(workflow *models.Workflow) *mockWorkflowStore {
	return &mockWorkflowStore{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
			return workflow, nil
		},
	}
}

func TestDispatchDueSendsAndMarksDispatched(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "Hi {{client.firstName}}, see you at {{business.name}}!", "+15550100")

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		nil, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	n, err := dispatcher.DispatchDue(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("picked up %d jobs, want 1", n)
	}

	if len(sms.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sms.sent))
	}
	if sms.sent[0] != "Hi Jane, see you at Acme Spa!" {
		t.Errorf("rendered message = %q", sms.sent[0])
	}
	if len(queue.dispatched) != 1 || queue.dispatched[0] != job.ID {
		t.Errorf("job not marked dispatched: %v", queue.dispatched)
	}
}

func TestDispatchDueCancelsOrphanedJobs(t *testing.T) {
	tests := []struct {
		name  string
		store *mockWorkflowStore
	}{
		{
			name: "workflow deleted",
			store: &mockWorkflowStore{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
					return nil, ErrNotFound
				},
			},
		},
		{
			name: "workflow deactivated",
			store: &mockWorkflowStore{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
					return &models.Workflow{ID: id, IsActive: false}, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := smsJob(uuid.New(), "hello", "+15550100")
			queue := &mockDispatchQueue{
				getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
					return []*models.ScheduledJob{job}, nil
				},
			}
			sms := &mockSMSExecutor{}

			dispatcher := NewActionDispatcher(
				queue, tt.store, ExecutorSet{SMS: sms},
				nil, 5, 30*time.Second, nil, logger.NewForTesting(),
			)

			if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(sms.sent) != 0 {
				t.Error("orphaned job must not execute")
			}
			if len(queue.cancelled) != 1 || queue.cancelled[0] != job.ID {
				t.Errorf("job not cancelled: %v", queue.cancelled)
			}
		})
	}
}

func TestDispatchDueLeavesJobPendingOnTransientLookupError(t *testing.T) {
	job := smsJob(uuid.New(), "hello", "+15550100")
	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	store := &mockWorkflowStore{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
			return nil, errors.New("connection refused")
		},
	}
	sms := &mockSMSExecutor{}

	dispatcher := NewActionDispatcher(
		queue, store, ExecutorSet{SMS: sms},
		nil, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 0 || len(queue.cancelled) != 0 || len(queue.failed) != 0 || len(queue.rescheduled) != 0 {
		t.Error("transient lookup failure must leave the job untouched for the next poll")
	}
}

func TestDispatchDueReschedulesWithBackoff(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "hello", "+15550100")
	job.Attempts = 1

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{
		sendFunc: func(ctx context.Context, to, message string) error {
			return errors.New("gateway timeout")
		},
	}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		nil, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	before := time.Now()
	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(queue.rescheduled) != 1 {
		t.Fatalf("expected one reschedule, got %d", len(queue.rescheduled))
	}
	if queue.lastAttempts != 2 {
		t.Errorf("attempts = %d, want 2", queue.lastAttempts)
	}
	// Second attempt backs off 2x the base.
	minDue := before.Add(60 * time.Second)
	if queue.lastDueAt.Before(minDue) {
		t.Errorf("retry due at %v, want at least %v", queue.lastDueAt, minDue)
	}
	if queue.lastLastError != "gateway timeout" {
		t.Errorf("last error = %q", queue.lastLastError)
	}
}

func TestDispatchDueMarksFailedAfterMaxAttempts(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "hello", "+15550100")
	job.Attempts = 4

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{
		sendFunc: func(ctx context.Context, to, message string) error {
			return errors.New("number unreachable")
		},
	}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		nil, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(queue.failed) != 1 {
		t.Fatalf("expected one permanent failure, got %d", len(queue.failed))
	}
	if len(queue.rescheduled) != 0 {
		t.Error("exhausted job must not be rescheduled")
	}
	if queue.lastAttempts != 5 {
		t.Errorf("attempts = %d, want 5", queue.lastAttempts)
	}
	if queue.lastLastError != "number unreachable" {
		t.Errorf("last error = %q", queue.lastLastError)
	}
}

func TestDispatchMissingContactDetailFails(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "hello", "")
	job.Attempts = 4

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		nil, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 0 {
		t.Error("must not send without a phone number")
	}
	if len(queue.failed) != 1 {
		t.Errorf("expected a permanent failure, got %d", len(queue.failed))
	}
}

func TestDispatchComposerFailureFallsBackToPlainBody(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "Hi {{client.firstName}}!", "+15550100")
	job.Action.SMS.Compose = &models.ComposeConfig{Enabled: true, Tone: "warm"}

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{}
	composer := &mockComposer{
		composeFunc: func(ctx context.Context, body, tone string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		composer, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sms.sent))
	}
	if sms.sent[0] != "Hi Jane!" {
		t.Errorf("fallback body = %q, want plain rendered template", sms.sent[0])
	}
	if len(queue.dispatched) != 1 {
		t.Error("job should still be marked dispatched")
	}
}

func TestDispatchComposerRewritesBody(t *testing.T) {
	workflow := testWorkflow(nil)
	job := smsJob(workflow.ID, "Hi {{client.firstName}}!", "+15550100")
	job.Action.SMS.Compose = &models.ComposeConfig{Enabled: true, Tone: "playful"}

	queue := &mockDispatchQueue{
		getDueJobsFunc: func(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
			return []*models.ScheduledJob{job}, nil
		},
	}
	sms := &mockSMSExecutor{}
	composer := &mockComposer{
		composeFunc: func(ctx context.Context, body, tone string) (string, error) {
			if body != "Hi Jane!" {
				t.Errorf("composer received unrendered body %q", body)
			}
			if tone != "playful" {
				t.Errorf("composer received tone %q", tone)
			}
			return "Hey Jane, can't wait to see you!", nil
		},
	}

	dispatcher := NewActionDispatcher(
		queue, activeWorkflowStore(workflow), ExecutorSet{SMS: sms},
		composer, 5, 30*time.Second, nil, logger.NewForTesting(),
	)

	if _, err := dispatcher.DispatchDue(context.Background(), 10, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 1 || sms.sent[0] != "Hey Jane, can't wait to see you!" {
		t.Errorf("sent = %v, want composed body", sms.sent)
	}
}
