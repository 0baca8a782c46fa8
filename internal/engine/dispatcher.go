package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/metrics"
)

// ErrWorkflowInactive marks jobs whose owning workflow was deleted or
// deactivated between scheduling and dispatch.
var ErrWorkflowInactive = errors.New("workflow deleted or inactive")

// DispatchQueue is the durable job queue the dispatcher consumes
type DispatchQueue interface {
	GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, dueAt time.Time, lastError string) error
}

// Composer optionally rewrites outgoing message bodies before send
type Composer interface {
	Compose(ctx context.Context, body, tone string) (string, error)
}

// ActionDispatcher pops due jobs, renders their templates and routes them
// to the matching executor. Retries are realized by pushing the job's DueAt
// out and letting a later poll pick it up again; nothing sleeps in-process.
type ActionDispatcher struct {
	jobs        DispatchQueue
	workflows   WorkflowStore
	executors   ExecutorSet
	composer    Composer
	maxAttempts int
	retryBase   time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewActionDispatcher creates a new action dispatcher. composer may be nil.
func NewActionDispatcher(
	jobs DispatchQueue,
	workflows WorkflowStore,
	executors ExecutorSet,
	composer Composer,
	maxAttempts int,
	retryBase time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *ActionDispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if retryBase <= 0 {
		retryBase = 30 * time.Second
	}

	return &ActionDispatcher{
		jobs:        jobs,
		workflows:   workflows,
		executors:   executors,
		composer:    composer,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		metrics:     m,
		logger:      log,
	}
}

// DispatchDue claims up to limit due jobs and executes them across a small
// worker pool. Jobs are independent; one failure never blocks another.
// Returns the number of jobs picked up.
func (d *ActionDispatcher) DispatchDue(ctx context.Context, limit, workers int) (int, error) {
	jobs, err := d.jobs.GetDueJobs(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due jobs: %w", err)
	}

	if len(jobs) == 0 {
		return 0, nil
	}

	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(job *models.ScheduledJob) {
			defer wg.Done()
			defer func() { <-sem }()
			d.dispatchJob(ctx, job)
		}(job)
	}

	wg.Wait()

	return len(jobs), nil
}

// dispatchJob runs one job end to end: active check, render, execute,
// outcome recording.
func (d *ActionDispatcher) dispatchJob(ctx context.Context, job *models.ScheduledJob) {
	log := d.logger.With(
		logger.String("job_id", job.ID.String()),
		logger.String("workflow_id", job.WorkflowID.String()),
		logger.String("action_kind", string(job.ActionKind)),
	)

	// Workflow deletion/deactivation is re-checked here, not only at
	// schedule time, to close the race with jobs queued before the change.
	workflow, err := d.workflows.GetByID(ctx, job.WorkflowID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Transient lookup failure: leave the job pending for the next poll.
		log.Error("Failed to load workflow for job", logger.Err(err))
		return
	}
	if workflow == nil || !workflow.IsActive {
		if err := d.jobs.MarkCancelled(ctx, job.ID); err != nil {
			log.Error("Failed to cancel orphaned job", logger.Err(err))
			return
		}
		if d.metrics != nil {
			d.metrics.JobsCancelled.Inc()
		}
		log.Info("Cancelled job for deleted or deactivated workflow")
		return
	}

	started := time.Now()
	execErr := d.execute(ctx, job)
	if d.metrics != nil {
		d.metrics.DispatchDuration.WithLabelValues(string(job.ActionKind)).Observe(time.Since(started).Seconds())
	}

	if execErr == nil {
		if err := d.jobs.MarkDispatched(ctx, job.ID); err != nil {
			log.Error("Failed to mark job dispatched", logger.Err(err))
			return
		}
		if d.metrics != nil {
			d.metrics.JobsDispatched.WithLabelValues(string(job.ActionKind)).Inc()
		}
		log.Info("Job dispatched", logger.Int("attempts", job.Attempts+1))
		return
	}

	attempts := job.Attempts + 1

	if attempts >= d.maxAttempts {
		// Exhausted: record a durable failure the business owner can see.
		if err := d.jobs.MarkFailed(ctx, job.ID, attempts, execErr.Error()); err != nil {
			log.Error("Failed to mark job failed", logger.Err(err))
			return
		}
		if d.metrics != nil {
			d.metrics.JobsFailed.WithLabelValues(string(job.ActionKind)).Inc()
		}
		log.Error("Job failed permanently",
			logger.Int("attempts", attempts),
			logger.Err(execErr),
		)
		return
	}

	retryAt := time.Now().Add(d.backoff(attempts))
	if err := d.jobs.Reschedule(ctx, job.ID, attempts, retryAt, execErr.Error()); err != nil {
		log.Error("Failed to reschedule job", logger.Err(err))
		return
	}

	log.Warn("Job execution failed, retrying",
		logger.Int("attempt", attempts),
		logger.Int("max_attempts", d.maxAttempts),
		logger.Time("retry_at", retryAt),
		logger.Err(execErr),
	)
}

// backoff doubles per attempt: base, 2x, 4x, 8x...
func (d *ActionDispatcher) backoff(attempt int) time.Duration {
	delay := d.retryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// execute routes a job to its executor, exhaustively by action kind
func (d *ActionDispatcher) execute(ctx context.Context, job *models.ScheduledJob) error {
	vars := job.Context.Variables()
	action := job.Action

	switch job.ActionKind {
	case models.ActionSendEmail:
		if action.Email == nil {
			return fmt.Errorf("send_email action has no email config")
		}
		if job.Context.Client.Email == "" {
			return fmt.Errorf("client has no email address")
		}
		subject := RenderTemplate(action.Email.Subject, vars)
		body, err := d.composeBody(ctx, RenderTemplate(action.Email.Body, vars), action.Email.Compose)
		if err != nil {
			return err
		}
		return d.executors.Email.Send(ctx, job.Context.Client.Email, subject, body)

	case models.ActionSendSMS:
		if action.SMS == nil {
			return fmt.Errorf("send_sms action has no sms config")
		}
		if job.Context.Client.Phone == "" {
			return fmt.Errorf("client has no phone number")
		}
		message, err := d.composeBody(ctx, RenderTemplate(action.SMS.Message, vars), action.SMS.Compose)
		if err != nil {
			return err
		}
		return d.executors.SMS.Send(ctx, job.Context.Client.Phone, message)

	case models.ActionAddPoints:
		if action.Points == nil {
			return fmt.Errorf("add_points action has no points config")
		}
		clientID, err := d.clientID(job)
		if err != nil {
			return err
		}
		return d.executors.Loyalty.AddPoints(ctx, clientID, action.Points.Points, action.Points.Reason)

	case models.ActionApplyDiscount:
		if action.Discount == nil {
			return fmt.Errorf("apply_discount action has no discount config")
		}
		clientID, err := d.clientID(job)
		if err != nil {
			return err
		}
		return d.executors.Promotions.CreateDiscount(
			ctx, clientID,
			action.Discount.DiscountType,
			action.Discount.DiscountValue,
			action.Discount.ValidDays,
		)

	case models.ActionCreateTask:
		if action.Task == nil {
			return fmt.Errorf("create_task action has no task config")
		}
		title := RenderTemplate(action.Task.Title, vars)
		description := RenderTemplate(action.Task.Description, vars)
		return d.executors.Task.Create(ctx, title, description, action.Task.Assignee, job.Context.StaffID)

	case models.ActionUpdateClient:
		if action.ClientUpdate == nil {
			return fmt.Errorf("update_client action has no client_update config")
		}
		clientID, err := d.clientID(job)
		if err != nil {
			return err
		}
		note := RenderTemplate(action.ClientUpdate.Note, vars)
		return d.executors.CRM.UpdateClient(ctx, clientID, action.ClientUpdate.AddTags, note)

	case models.ActionSendNotification:
		if action.Notification == nil {
			return fmt.Errorf("send_notification action has no notification config")
		}
		title := RenderTemplate(action.Notification.Title, vars)
		message := RenderTemplate(action.Notification.Message, vars)
		return d.executors.Notification.NotifyStaff(ctx, job.BusinessID, action.Notification.Target, title, message)

	case models.ActionWebhook:
		if action.Webhook == nil {
			return fmt.Errorf("webhook action has no webhook config")
		}
		return d.executors.Webhook.Call(ctx, action.Webhook.URL, action.Webhook.Method, d.webhookPayload(job))

	default:
		return fmt.Errorf("unsupported action kind: %q", job.ActionKind)
	}
}

// composeBody optionally rewrites a rendered body through the AI composer.
// Composer failure falls back to the plain rendered body; a down LLM must
// never fail a reminder.
func (d *ActionDispatcher) composeBody(ctx context.Context, body string, compose *models.ComposeConfig) (string, error) {
	if compose == nil || !compose.Enabled || d.composer == nil {
		return body, nil
	}

	rewritten, err := d.composer.Compose(ctx, body, compose.Tone)
	if err != nil {
		d.logger.Warn("Composer failed, sending plain rendered body", logger.Err(err))
		return body, nil
	}

	return rewritten, nil
}

func (d *ActionDispatcher) clientID(job *models.ScheduledJob) (uuid.UUID, error) {
	if job.Context.ClientID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("job has no client reference")
	}
	return job.Context.ClientID, nil
}

func (d *ActionDispatcher) webhookPayload(job *models.ScheduledJob) map[string]interface{} {
	payload := map[string]interface{}{
		"workflow_id":  job.WorkflowID.String(),
		"action_index": job.ActionIndex,
		"client": map[string]interface{}{
			"firstName": job.Context.Client.FirstName,
			"lastName":  job.Context.Client.LastName,
			"email":     job.Context.Client.Email,
			"phone":     job.Context.Client.Phone,
		},
		"business": map[string]interface{}{
			"name": job.Context.Business.Name,
		},
	}

	if job.Context.Appointment != nil {
		payload["appointment"] = map[string]interface{}{
			"date":    job.Context.Appointment.Date,
			"time":    job.Context.Appointment.Time,
			"service": job.Context.Appointment.Service,
		}
	}

	if job.Context.Staff != nil {
		payload["staff"] = map[string]interface{}{
			"name": job.Context.Staff.Name,
		}
	}

	return payload
}
