package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/metrics"
)

// ErrNotFound is returned by stores when a record does not exist
var ErrNotFound = errors.New("not found")

// WorkflowStore is the workflow lookup the bus and dispatcher depend on
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	ListActive(ctx context.Context, businessID uuid.UUID) ([]models.Workflow, error)
}

// EventStore persists received events for audit and replay
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
}

// EventBus decouples event producers from the matching pipeline. Publish
// never blocks and never returns an error to the producer; a booking must
// succeed even if automation matching is on fire. A single consumer
// goroutine drains the queue, which preserves per-producer emission order
// for same-kind events.
type EventBus struct {
	workflows WorkflowStore
	events    EventStore
	builder   *ContextBuilder
	scheduler *ActionScheduler
	queue     chan *models.Event
	metrics   *metrics.Metrics
	logger    *logger.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewEventBus creates a new event bus
func NewEventBus(
	workflows WorkflowStore,
	events EventStore,
	builder *ContextBuilder,
	scheduler *ActionScheduler,
	queueSize int,
	m *metrics.Metrics,
	log *logger.Logger,
) *EventBus {
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &EventBus{
		workflows: workflows,
		events:    events,
		builder:   builder,
		scheduler: scheduler,
		queue:     make(chan *models.Event, queueSize),
		metrics:   m,
		logger:    log,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Publish accepts an event and queues it for matching. Fire-and-forget:
// a full queue drops the event with an error log rather than blocking the
// calling business operation.
func (b *EventBus) Publish(ctx context.Context, event *models.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.ReceivedAt = time.Now()

	if err := b.events.CreateEvent(ctx, event); err != nil {
		b.logger.Error("Failed to persist event",
			logger.String("kind", string(event.Kind)),
			logger.Err(err),
		)
	}

	select {
	case b.queue <- event:
		if b.metrics != nil {
			b.metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()
		}
	default:
		if b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
		b.logger.Error("Event queue full, dropping event",
			logger.String("kind", string(event.Kind)),
			logger.String("event_id", event.ID.String()),
		)
	}
}

// Start starts the bus consumer in the background
func (b *EventBus) Start(ctx context.Context) {
	b.logger.Info("Starting event bus", logger.Int("queue_size", cap(b.queue)))
	go b.run(ctx)
}

// Stop drains the consumer and waits for it to finish
func (b *EventBus) Stop() {
	close(b.stopCh)
	<-b.doneCh
	b.logger.Info("Event bus stopped")
}

func (b *EventBus) run(ctx context.Context) {
	defer close(b.doneCh)

	for {
		select {
		case event := <-b.queue:
			b.process(ctx, event)
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// process fans one event out across the business's active workflows. Each
// workflow is evaluated under its own recover so one bad definition cannot
// block the rest of the fan-out.
func (b *EventBus) process(ctx context.Context, event *models.Event) {
	workflows, err := b.workflows.ListActive(ctx, event.BusinessID)
	if err != nil {
		b.logger.Error("Failed to list active workflows",
			logger.String("event_id", event.ID.String()),
			logger.Err(err),
		)
		return
	}

	matchedAt := time.Now()

	// The snapshot is identical for every workflow matching this event, so
	// build it at most once.
	var tctx *models.TemplateContext

	for i := range workflows {
		workflow := &workflows[i]

		matched := b.safeMatch(workflow, event)
		if !matched {
			continue
		}

		if b.metrics != nil {
			b.metrics.TriggerMatches.WithLabelValues(string(workflow.Trigger.Kind)).Inc()
		}

		if tctx == nil {
			built, err := b.builder.FromEvent(ctx, event)
			if err != nil {
				b.logger.Error("Failed to build template context",
					logger.String("event_id", event.ID.String()),
					logger.Err(err),
				)
				return
			}
			tctx = &built
		}

		if _, err := b.scheduler.Schedule(ctx, workflow, *tctx, matchedAt); err != nil {
			b.logger.Error("Failed to schedule workflow actions",
				logger.String("workflow_id", workflow.ID.String()),
				logger.Err(err),
			)
		}
	}
}

// safeMatch evaluates a single workflow's trigger, converting panics and
// malformed definitions into a logged skip.
func (b *EventBus) safeMatch(workflow *models.Workflow, event *models.Event) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			b.logger.Error("Panic while matching workflow, skipping",
				logger.String("workflow_id", workflow.ID.String()),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()

	matched, err := MatchTrigger(workflow.Trigger, event)
	if err != nil {
		b.logger.Warn("Skipping workflow with malformed trigger",
			logger.String("workflow_id", workflow.ID.String()),
			logger.String("workflow_name", workflow.Name),
			logger.Err(err),
		)
		return false
	}

	return matched
}
