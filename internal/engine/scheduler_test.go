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

type mockJobStore struct {
	createJobFunc func(ctx context.Context, job *models.ScheduledJob) error
	created       []*models.ScheduledJob
}

func (m *mockJobStore) CreateJob(ctx context.Context, job *models.ScheduledJob) error {
	if m.createJobFunc != nil {
		if err := m.createJobFunc(ctx, job); err != nil {
			return err
		}
	}
	m.created = append(m.created, job)
	return nil
}

func testWorkflow(actions models.ActionList) *models.Workflow {
	return &models.Workflow{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Name:       "test workflow",
		IsActive:   true,
		Trigger:    models.TriggerSpec{Kind: models.TriggerAppointmentCompleted},
		Actions:    actions,
	}
}

func TestScheduleDelaysAreIndependentOffsets(t *testing.T) {
	store := &mockJobStore{}
	scheduler := NewActionScheduler(store, nil, logger.NewForTesting())

	workflow := testWorkflow(models.ActionList{
		{Kind: models.ActionSendSMS, SMS: &models.SMSAction{Message: "now"}},
		{Kind: models.ActionSendEmail, Delay: models.Delay{Value: 60, Unit: models.DelayMinutes}, Email: &models.EmailAction{Body: "later"}},
		{Kind: models.ActionCreateTask, Delay: models.Delay{Value: 1, Unit: models.DelayDays}, Task: &models.TaskAction{Title: "follow up"}},
	})

	matchedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	jobs, err := scheduler.Schedule(context.Background(), workflow, models.TemplateContext{}, matchedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	wantDue := []time.Time{
		matchedAt,
		matchedAt.Add(60 * time.Minute),
		matchedAt.Add(24 * time.Hour),
	}

	for i, job := range jobs {
		if !job.DueAt.Equal(wantDue[i]) {
			t.Errorf("job %d due at %v, want %v", i, job.DueAt, wantDue[i])
		}
		if job.Status != models.JobStatusPending {
			t.Errorf("job %d status = %s, want pending", i, job.Status)
		}
		if job.ActionIndex != i {
			t.Errorf("job %d action index = %d", i, job.ActionIndex)
		}
		if job.WorkflowID != workflow.ID {
			t.Errorf("job %d workflow id mismatch", i)
		}
	}
}

func TestScheduleContinuesPastEnqueueFailure(t *testing.T) {
	store := &mockJobStore{
		createJobFunc: func(ctx context.Context, job *models.ScheduledJob) error {
			if job.ActionIndex == 0 {
				return errors.New("db down")
			}
			return nil
		},
	}
	scheduler := NewActionScheduler(store, nil, logger.NewForTesting())

	workflow := testWorkflow(models.ActionList{
		{Kind: models.ActionSendSMS, SMS: &models.SMSAction{Message: "a"}},
		{Kind: models.ActionSendEmail, Email: &models.EmailAction{Body: "b"}},
	})

	jobs, err := scheduler.Schedule(context.Background(), workflow, models.TemplateContext{}, time.Now())
	if err == nil {
		t.Fatal("expected the first enqueue failure to surface")
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the sibling action to still be queued, got %d jobs", len(jobs))
	}
	if jobs[0].ActionKind != models.ActionSendEmail {
		t.Errorf("queued job kind = %s, want send_email", jobs[0].ActionKind)
	}
}

func TestScheduleSnapshotsContextOntoJobs(t *testing.T) {
	store := &mockJobStore{}
	scheduler := NewActionScheduler(store, nil, logger.NewForTesting())

	workflow := testWorkflow(models.ActionList{
		{Kind: models.ActionSendSMS, SMS: &models.SMSAction{Message: "hi {{client.firstName}}"}},
	})

	tctx := models.TemplateContext{
		ClientID: uuid.New(),
		Client:   models.ClientContext{FirstName: "Jane", Phone: "+15550100"},
		Business: models.BusinessContext{Name: "Acme Spa"},
	}

	jobs, err := scheduler.Schedule(context.Background(), workflow, tctx, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if jobs[0].Context.Client.FirstName != "Jane" {
		t.Errorf("job context not snapshotted: %+v", jobs[0].Context)
	}
	if jobs[0].Context.ClientID != tctx.ClientID {
		t.Error("job lost the client reference")
	}
}
