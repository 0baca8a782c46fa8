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

// ScanWorkflowStore lists the scan-based workflows the scanner evaluates
type ScanWorkflowStore interface {
	ListActiveScanBased(ctx context.Context) ([]models.Workflow, error)
}

// ScanDirectory finds the candidate entities for scan-based triggers
type ScanDirectory interface {
	// ListClientsWithBirthdayOn returns clients of the business whose
	// birthday falls on the given calendar day (any year).
	ListClientsWithBirthdayOn(ctx context.Context, businessID uuid.UUID, day time.Time) ([]models.Client, error)

	// ListInactiveClients returns clients whose last visit is at or before
	// the cutoff (clients with no visits at all are excluded).
	ListInactiveClients(ctx context.Context, businessID uuid.UUID, cutoff time.Time) ([]models.Client, error)

	// ListNoShowAppointments returns appointments whose scheduled start plus
	// grace period has passed with no check-in recorded.
	ListNoShowAppointments(ctx context.Context, businessID uuid.UUID, grace time.Duration, now time.Time) ([]models.Appointment, error)
}

// FireStore is the durable idempotency ledger for scan-based triggers.
// Claim returns true exactly once per (workflow, entity, period); Release
// undoes a claim whose fire produced no jobs so a later scan can retry.
type FireStore interface {
	Claim(ctx context.Context, workflowID, entityID uuid.UUID, period string) (bool, error)
	Release(ctx context.Context, workflowID, entityID uuid.UUID, period string) error
}

// ScanGuard is a fast-path guard against concurrent scanner instances
// racing on the same key before the durable claim lands.
type ScanGuard interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// TriggerScanner evaluates the triggers that have no discrete event:
// client_birthday, inactive_client and no_show.
type TriggerScanner struct {
	workflows ScanWorkflowStore
	directory ScanDirectory
	fires     FireStore
	guard     ScanGuard
	builder   *ContextBuilder
	scheduler *ActionScheduler
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewTriggerScanner creates a new trigger scanner. guard may be nil; the
// durable fire ledger alone is still correct, just slower under racing
// scanners.
func NewTriggerScanner(
	workflows ScanWorkflowStore,
	directory ScanDirectory,
	fires FireStore,
	guard ScanGuard,
	builder *ContextBuilder,
	scheduler *ActionScheduler,
	m *metrics.Metrics,
	log *logger.Logger,
) *TriggerScanner {
	return &TriggerScanner{
		workflows: workflows,
		directory: directory,
		fires:     fires,
		guard:     guard,
		builder:   builder,
		scheduler: scheduler,
		metrics:   m,
		logger:    log,
	}
}

// Scan runs one pass over all active scan-based workflows. Safe to call
// repeatedly: every qualifying (workflow, entity) pair fires at most once
// per qualifying transition.
func (s *TriggerScanner) Scan(ctx context.Context, now time.Time) error {
	started := time.Now()

	workflows, err := s.workflows.ListActiveScanBased(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scan-based workflows: %w", err)
	}

	for i := range workflows {
		workflow := &workflows[i]

		var err error
		switch workflow.Trigger.Kind {
		case models.TriggerClientBirthday:
			err = s.scanBirthdays(ctx, workflow, now)
		case models.TriggerInactiveClient:
			err = s.scanInactiveClients(ctx, workflow, now)
		case models.TriggerNoShow:
			err = s.scanNoShows(ctx, workflow, now)
		default:
			s.logger.Warn("Skipping workflow with non-scan trigger in scan list",
				logger.String("workflow_id", workflow.ID.String()),
				logger.String("trigger_kind", string(workflow.Trigger.Kind)),
			)
			continue
		}

		if err != nil {
			// One broken workflow must not stop the rest of the scan.
			s.logger.Error("Scan failed for workflow",
				logger.String("workflow_id", workflow.ID.String()),
				logger.String("trigger_kind", string(workflow.Trigger.Kind)),
				logger.Err(err),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(time.Since(started).Seconds())
	}

	return nil
}

func (s *TriggerScanner) scanBirthdays(ctx context.Context, workflow *models.Workflow, now time.Time) error {
	targetDay := now.AddDate(0, 0, workflow.Trigger.DaysBefore())

	clients, err := s.directory.ListClientsWithBirthdayOn(ctx, workflow.BusinessID, targetDay)
	if err != nil {
		return fmt.Errorf("failed to list birthday clients: %w", err)
	}

	// One fire per workflow+client+calendar date, no matter how many times
	// the same day is scanned.
	period := now.Format("2006-01-02")

	for i := range clients {
		client := &clients[i]
		s.fire(ctx, workflow, client.ID, nil, period, now)
	}

	return nil
}

func (s *TriggerScanner) scanInactiveClients(ctx context.Context, workflow *models.Workflow, now time.Time) error {
	cutoff := now.AddDate(0, 0, -workflow.Trigger.DaysSinceVisit())

	clients, err := s.directory.ListInactiveClients(ctx, workflow.BusinessID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list inactive clients: %w", err)
	}

	for i := range clients {
		client := &clients[i]

		// The period is the client's last visit date: a new visit re-arms
		// the trigger for a later inactivity stretch.
		if client.LastVisitAt == nil {
			continue
		}
		period := "visit:" + client.LastVisitAt.Format("2006-01-02")

		s.fire(ctx, workflow, client.ID, nil, period, now)
	}

	return nil
}

func (s *TriggerScanner) scanNoShows(ctx context.Context, workflow *models.Workflow, now time.Time) error {
	grace := workflow.Trigger.GracePeriod()

	appointments, err := s.directory.ListNoShowAppointments(ctx, workflow.BusinessID, grace, now)
	if err != nil {
		return fmt.Errorf("failed to list no-show appointments: %w", err)
	}

	for i := range appointments {
		appointment := &appointments[i]
		period := appointment.ScheduledStart.Format("2006-01-02")
		s.fire(ctx, workflow, appointment.ClientID, appointment, period, now)
	}

	return nil
}

// fire claims the idempotency key and, when this scan wins the claim,
// snapshots context and schedules the workflow's actions. The claim is only
// kept once at least one job is durably queued; on a fire that produced
// nothing, the claim and the fast guard are rolled back so the next scan of
// the same period retries.
func (s *TriggerScanner) fire(
	ctx context.Context,
	workflow *models.Workflow,
	clientID uuid.UUID,
	appointment *models.Appointment,
	period string,
	matchedAt time.Time,
) {
	entityID := clientID
	if appointment != nil {
		entityID = appointment.ID
	}

	guardKey := fmt.Sprintf("fire:%s:%s:%s", workflow.ID, entityID, period)

	if s.guard != nil {
		acquired, err := s.guard.TryAcquire(ctx, guardKey)
		if err != nil {
			s.logger.Warn("Scan guard unavailable, relying on durable claim", logger.Err(err))
		} else if !acquired {
			return
		}
	}

	claimed, err := s.fires.Claim(ctx, workflow.ID, entityID, period)
	if err != nil {
		s.logger.Error("Failed to claim trigger fire",
			logger.String("workflow_id", workflow.ID.String()),
			logger.String("entity_id", entityID.String()),
			logger.String("period", period),
			logger.Err(err),
		)
		// The guard would otherwise block retries until its TTL expires.
		s.releaseGuard(ctx, guardKey)
		return
	}
	if !claimed {
		return
	}

	if s.metrics != nil {
		s.metrics.TriggerMatches.WithLabelValues(string(workflow.Trigger.Kind)).Inc()
	}

	var appointmentID *uuid.UUID
	if appointment != nil {
		appointmentID = &appointment.ID
	}

	tctx, err := s.builder.FromEntities(ctx, workflow.BusinessID, clientID, appointmentID)
	if err != nil {
		s.logger.Error("Failed to build scan template context",
			logger.String("workflow_id", workflow.ID.String()),
			logger.Err(err),
		)
		s.rollbackFire(ctx, workflow.ID, entityID, period, guardKey)
		return
	}

	jobs, err := s.scheduler.Schedule(ctx, workflow, tctx, matchedAt)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ScanFireFailures.Inc()
		}
		s.logger.Error("Failed to schedule scan-triggered actions",
			logger.String("workflow_id", workflow.ID.String()),
			logger.String("entity_id", entityID.String()),
			logger.String("period", period),
			logger.Err(err),
		)
		// Roll back only when nothing was queued; after a partial enqueue the
		// claim must stand or a rescan would duplicate the queued siblings.
		if len(jobs) == 0 {
			s.rollbackFire(ctx, workflow.ID, entityID, period, guardKey)
		}
	}
}

// rollbackFire undoes the durable claim and the fast guard of a fire that
// queued no jobs.
func (s *TriggerScanner) rollbackFire(ctx context.Context, workflowID, entityID uuid.UUID, period, guardKey string) {
	if err := s.fires.Release(ctx, workflowID, entityID, period); err != nil {
		s.logger.Error("Failed to release trigger fire claim",
			logger.String("workflow_id", workflowID.String()),
			logger.String("entity_id", entityID.String()),
			logger.String("period", period),
			logger.Err(err),
		)
	}
	s.releaseGuard(ctx, guardKey)
}

func (s *TriggerScanner) releaseGuard(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release scan guard", logger.Err(err))
	}
}
