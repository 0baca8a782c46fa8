package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/metrics"
)

// JobStore is the durable queue the scheduler writes to
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ScheduledJob) error
}

// ActionScheduler expands a matched workflow's action list into durably
// queued, time-stamped jobs.
type ActionScheduler struct {
	jobs    JobStore
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewActionScheduler creates a new action scheduler
func NewActionScheduler(jobs JobStore, m *metrics.Metrics, log *logger.Logger) *ActionScheduler {
	return &ActionScheduler{
		jobs:    jobs,
		metrics: m,
		logger:  log,
	}
}

// Schedule enqueues one job per action. Every dueAt is matchedAt plus that
// action's own delay; offsets are independent, not chained. A failed
// enqueue is logged and skipped so sibling actions still get queued.
func (s *ActionScheduler) Schedule(
	ctx context.Context,
	workflow *models.Workflow,
	tctx models.TemplateContext,
	matchedAt time.Time,
) ([]*models.ScheduledJob, error) {
	jobs := make([]*models.ScheduledJob, 0, len(workflow.Actions))

	var firstErr error

	for i, action := range workflow.Actions {
		job := &models.ScheduledJob{
			ID:          uuid.New(),
			BusinessID:  workflow.BusinessID,
			WorkflowID:  workflow.ID,
			ActionIndex: i,
			ActionKind:  action.Kind,
			Action:      action,
			Context:     tctx,
			DueAt:       matchedAt.Add(action.Delay.Duration()),
			Status:      models.JobStatusPending,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err := s.jobs.CreateJob(ctx, job); err != nil {
			s.logger.Error("Failed to enqueue action job",
				logger.String("workflow_id", workflow.ID.String()),
				logger.Int("action_index", i),
				logger.String("action_kind", string(action.Kind)),
				logger.Err(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to enqueue action %d (%s): %w", i, action.Kind, err)
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.JobsScheduled.WithLabelValues(string(action.Kind)).Inc()
		}

		jobs = append(jobs, job)
	}

	s.logger.Info("Scheduled workflow actions",
		logger.String("workflow_id", workflow.ID.String()),
		logger.String("workflow_name", workflow.Name),
		logger.Int("jobs", len(jobs)),
	)

	return jobs, firstErr
}
