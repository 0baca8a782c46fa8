package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/logger"
)

// staffNotification is the message shape pushed onto the notification channel
type staffNotification struct {
	BusinessID uuid.UUID           `json:"business_id"`
	Target     models.TaskAssignee `json:"target"`
	Title      string              `json:"title"`
	Message    string              `json:"message"`
	SentAt     time.Time           `json:"sent_at"`
}

// RedisNotificationExecutor publishes in-app staff notifications onto a Redis
// channel per business. The main application's websocket layer subscribes and
// fans them out to connected staff devices.
type RedisNotificationExecutor struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisNotificationExecutor creates a new notification executor
func NewRedisNotificationExecutor(client *redis.Client, log *logger.Logger) *RedisNotificationExecutor {
	return &RedisNotificationExecutor{client: client, logger: log}
}

// NotifyStaff publishes a notification for the business's staff
func (e *RedisNotificationExecutor) NotifyStaff(ctx context.Context, businessID uuid.UUID, target models.TaskAssignee, title, message string) error {
	notification := staffNotification{
		BusinessID: businessID,
		Target:     target,
		Title:      title,
		Message:    message,
		SentAt:     time.Now(),
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := fmt.Sprintf("notifications:%s", businessID)
	if err := e.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	e.logger.Debug("Staff notification published",
		logger.String("business_id", businessID.String()),
		logger.String("target", string(target)),
	)
	return nil
}
