package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/glowdesk/automations/pkg/config"
	"github.com/glowdesk/automations/pkg/logger"
)

// HTTPWebhookExecutor delivers workflow payloads to business-configured
// endpoints. A shared rate limiter keeps a burst of due jobs from hammering
// a single receiver.
type HTTPWebhookExecutor struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewHTTPWebhookExecutor creates a new webhook executor
func NewHTTPWebhookExecutor(cfg *config.WebhookConfig, log *logger.Logger) *HTTPWebhookExecutor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}

	return &HTTPWebhookExecutor{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:     log,
	}
}

// Call posts the payload to the configured URL. Non-2xx responses are errors
// so the dispatcher's retry policy applies.
func (e *HTTPWebhookExecutor) Call(ctx context.Context, url, method string, payload map[string]interface{}) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait cancelled: %w", err)
	}

	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "glowdesk-automations/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	e.logger.Debug("Webhook delivered",
		logger.String("url", url),
		logger.Int("status", resp.StatusCode),
	)
	return nil
}
