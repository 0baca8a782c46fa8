package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/glowdesk/automations/pkg/config"
	"github.com/glowdesk/automations/pkg/llm"
	"github.com/glowdesk/automations/pkg/llm/providers/anthropic"
	"github.com/glowdesk/automations/pkg/llm/providers/openai"
	"github.com/glowdesk/automations/pkg/logger"
)

const composeSystemPrompt = `You rewrite short customer messages for a salon or spa business.
Rewrite the given message in the requested tone. Keep it the same length or shorter.
Preserve every concrete fact: names, dates, times, service names, amounts.
Return only the rewritten message, with no preamble or quotes.`

// MessageComposer rewrites outgoing message bodies through an LLM. The
// dispatcher treats composer failure as non-fatal, so this service only has
// to be best-effort.
type MessageComposer struct {
	client llm.Client
	logger *logger.Logger
}

// NewMessageComposer creates a composer backed by the configured provider.
// Returns nil when composing is disabled; the dispatcher accepts a nil
// composer.
func NewMessageComposer(cfg *config.ComposerConfig, log *logger.Logger) (*MessageComposer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	llmConfig := &llm.Config{
		Provider: llm.Provider(cfg.Provider),
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}

	var client llm.Client
	var err error

	switch llmConfig.Provider {
	case llm.ProviderOpenAI:
		client, err = openai.NewClient(llmConfig)
	case llm.ProviderAnthropic:
		client, err = anthropic.NewClient(llmConfig)
	default:
		return nil, fmt.Errorf("%w: %s", llm.ErrInvalidProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	log.Info("Message composer enabled",
		logger.String("provider", string(client.Provider())),
	)

	return &MessageComposer{client: client, logger: log}, nil
}

// Compose rewrites a rendered message body in the requested tone
func (c *MessageComposer) Compose(ctx context.Context, body, tone string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return body, nil
	}
	if tone == "" {
		tone = "warm"
	}

	prompt := fmt.Sprintf("Tone: %s\n\nMessage:\n%s", tone, body)

	rewritten, err := c.client.Complete(ctx, composeSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("compose failed: %w", err)
	}

	return strings.TrimSpace(rewritten), nil
}
