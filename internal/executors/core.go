package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/internal/models"
	"github.com/glowdesk/automations/pkg/config"
	"github.com/glowdesk/automations/pkg/logger"
)

// CoreAPIClient calls the main application's internal API, which owns SMS
// delivery, the loyalty ledger, promotions, staff tasks and the client CRM.
// One client implements all five executor interfaces.
type CoreAPIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewCoreAPIClient creates a new core API client
func NewCoreAPIClient(cfg *config.CoreAPIConfig, log *logger.Logger) *CoreAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &CoreAPIClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Send delivers an SMS to a client phone number
func (c *CoreAPIClient) Send(ctx context.Context, to, message string) error {
	return c.post(ctx, "/internal/v1/sms", map[string]interface{}{
		"to":      to,
		"message": message,
	})
}

// AddPoints credits loyalty points to a client
func (c *CoreAPIClient) AddPoints(ctx context.Context, clientID uuid.UUID, points int, reason string) error {
	return c.post(ctx, fmt.Sprintf("/internal/v1/clients/%s/loyalty/points", clientID), map[string]interface{}{
		"points": points,
		"reason": reason,
	})
}

// CreateDiscount mints a time-boxed discount for a client
func (c *CoreAPIClient) CreateDiscount(ctx context.Context, clientID uuid.UUID, discountType string, value float64, validDays int) error {
	return c.post(ctx, fmt.Sprintf("/internal/v1/clients/%s/discounts", clientID), map[string]interface{}{
		"discount_type":  discountType,
		"discount_value": value,
		"valid_days":     validDays,
	})
}

// Create creates a staff task
func (c *CoreAPIClient) Create(ctx context.Context, title, description string, assignee models.TaskAssignee, staffID *uuid.UUID) error {
	payload := map[string]interface{}{
		"title":       title,
		"description": description,
		"assignee":    assignee,
	}
	if staffID != nil {
		payload["staff_id"] = staffID.String()
	}

	return c.post(ctx, "/internal/v1/tasks", payload)
}

// UpdateClient applies a partial patch to a client record
func (c *CoreAPIClient) UpdateClient(ctx context.Context, clientID uuid.UUID, addTags []string, note string) error {
	payload := map[string]interface{}{}
	if len(addTags) > 0 {
		payload["add_tags"] = addTags
	}
	if note != "" {
		payload["note"] = note
	}

	return c.post(ctx, fmt.Sprintf("/internal/v1/clients/%s", clientID), payload)
}

func (c *CoreAPIClient) post(ctx context.Context, path string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("core api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("core api returned %d for %s: %s", resp.StatusCode, path, string(snippet))
	}

	return nil
}
