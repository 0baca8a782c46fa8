package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
)

// Executors are the external side-effect collaborators the dispatcher
// invokes. They are owned by the rest of the application; the engine only
// requires success or failure. Retry and latency characteristics behind
// each executor are opaque here.

// EmailExecutor sends an email to a client
type EmailExecutor interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMSExecutor sends an SMS to a client
type SMSExecutor interface {
	Send(ctx context.Context, to, message string) error
}

// LoyaltyExecutor credits points on the loyalty ledger
type LoyaltyExecutor interface {
	AddPoints(ctx context.Context, clientID uuid.UUID, points int, reason string) error
}

// PromotionsExecutor mints a time-boxed discount code for a client
type PromotionsExecutor interface {
	CreateDiscount(ctx context.Context, clientID uuid.UUID, discountType string, value float64, validDays int) error
}

// TaskExecutor creates a staff task
type TaskExecutor interface {
	Create(ctx context.Context, title, description string, assignee models.TaskAssignee, staffID *uuid.UUID) error
}

// CRMExecutor applies a partial client patch (tags, notes)
type CRMExecutor interface {
	UpdateClient(ctx context.Context, clientID uuid.UUID, addTags []string, note string) error
}

// NotificationExecutor delivers an in-app notification to staff
type NotificationExecutor interface {
	NotifyStaff(ctx context.Context, businessID uuid.UUID, target models.TaskAssignee, title, message string) error
}

// WebhookExecutor calls an external HTTP endpoint with a rendered payload
type WebhookExecutor interface {
	Call(ctx context.Context, url, method string, payload map[string]interface{}) error
}

// ExecutorSet bundles every executor the dispatcher can route to
type ExecutorSet struct {
	Email        EmailExecutor
	SMS          SMSExecutor
	Loyalty      LoyaltyExecutor
	Promotions   PromotionsExecutor
	Task         TaskExecutor
	CRM          CRMExecutor
	Notification NotificationExecutor
	Webhook      WebhookExecutor
}
