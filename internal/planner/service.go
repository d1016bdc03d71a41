// Package planner turns a natural-language question about a loaded table
// into an analysis descriptor. A model-backed client does the heavy lifting;
// a rule-based service answers when no model is reachable.
package planner

import (
	"context"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Provider identifiers
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Service plans an analysis for a question against a table schema.
type Service interface {
	// Plan produces a descriptor for the question. Implementations receive
	// only the schema and profiles of the table, never its cell values.
	Plan(ctx context.Context, question string, t *table.Table) (*plan.Result, error)

	// Configure updates the service configuration
	Configure(config Config) error
}

// Config holds provider settings for a model-backed service.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
}
