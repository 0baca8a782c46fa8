package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glowdesk/automations/internal/models"
)

// Client is the thin HTTP client the CLI uses against the automations API
type Client struct {
	baseURL    string
	token      string
	businessID string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token, businessID string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		businessID: businessID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.businessID != "" {
		req.Header.Set("X-Business-ID", c.businessID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return resp, nil
}

// HealthCheck verifies the API is reachable
func (c *Client) HealthCheck() error {
	resp, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// GetWorkflows retrieves all workflows of the business
func (c *Client) GetWorkflows() ([]models.Workflow, error) {
	resp, err := c.doRequest("GET", "/api/v1/workflows", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get workflows: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result struct {
		Workflows []models.Workflow `json:"workflows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Workflows, nil
}

// CreateWorkflow creates a new workflow from a definition file
func (c *Client) CreateWorkflow(req *models.CreateWorkflowRequest) (*models.Workflow, error) {
	resp, err := c.doRequest("POST", "/api/v1/workflows", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create workflow: %s (status: %d)", string(body), resp.StatusCode)
	}

	var workflow models.Workflow
	if err := json.NewDecoder(resp.Body).Decode(&workflow); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &workflow, nil
}

// PublishEvent publishes a test event onto the bus
func (c *Client) PublishEvent(req *models.PublishEventRequest) (string, error) {
	resp, err := c.doRequest("POST", "/api/v1/events", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to publish event: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.EventID, nil
}

// GetJobs retrieves scheduled jobs, optionally filtered by status
func (c *Client) GetJobs(status string) ([]models.ScheduledJob, error) {
	path := "/api/v1/jobs"
	if status != "" {
		path += "?status=" + status
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get jobs: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result struct {
		Jobs []models.ScheduledJob `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Jobs, nil
}
