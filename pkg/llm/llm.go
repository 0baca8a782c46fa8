package llm

import (
	"context"
	"errors"
	"time"
)

// Provider identifies an LLM provider
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

var (
	// ErrInvalidProvider is returned when an unsupported provider is specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidAPIKey is returned when the API key is missing
	ErrInvalidAPIKey = errors.New("invalid or missing API key")

	// ErrEmptyResponse is returned when the provider returns no content
	ErrEmptyResponse = errors.New("empty completion response")
)

// Config holds provider configuration
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Client is the minimal completion interface the engine needs.
// The message composer feeds it a system instruction and a draft message.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Provider() Provider
}
