package anthropic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/glowdesk/automations/pkg/llm"
)

const (
	defaultModel     = anthropic.ModelClaude3Dot5SonnetLatest
	defaultMaxTokens = 1024
)

// Client implements the LLM Client interface for Anthropic
type Client struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewClient creates a new Anthropic client
func NewClient(config *llm.Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, llm.ErrInvalidAPIKey
	}

	opts := []anthropic.ClientOption{}

	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{
			Timeout: config.Timeout,
		}))
	}

	model := anthropic.Model(config.Model)
	if config.Model == "" {
		model = defaultModel
	}

	return &Client{
		client: anthropic.NewClient(config.APIKey, opts...),
		model:  model,
	}, nil
}

// Complete sends a messages request and returns the first text block
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     c.model,
		System:    system,
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	text := resp.GetFirstContentText()
	if text == "" {
		return "", llm.ErrEmptyResponse
	}

	return text, nil
}

// Provider returns the provider identifier
func (c *Client) Provider() llm.Provider {
	return llm.ProviderAnthropic
}
