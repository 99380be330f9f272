// Package llm implements the external-model collaborator used as the
// parser's final layer.
package llm

import (
	"context"
	"time"
)

// Client defines the raw completion interface for model providers.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds configuration for a model client.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxRetries  int
	MaxTokens   int
	RetryDelay  time.Duration
	Temperature float64
}
