// Package llm abstracts hosted completion providers behind a single Client
// interface. The provider is selected once at startup from configuration;
// API failures surface as ProviderError and are never retried here.
package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/docs-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ProviderError wraps a failure returned by a completion API so callers can
// tell provider faults apart from local ones.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GroqAPIKey    string
}

func NewClient(cfg config.Config) (Client, error) {
	model := cfg.LLM.Model
	if model == "" {
		model = cfg.DefaultModel()
	}

	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GroqAPIKey:    cfg.GroqAPIKey,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	case config.ProviderGroq:
		if opts.GroqAPIKey == "" {
			return nil, fmt.Errorf("groq provider selected but GROQ_API_KEY not set")
		}
		return NewGroqClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
