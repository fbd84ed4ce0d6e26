// Package embeddings turns text into vectors via an external provider. The
// primary provider is a local Ollama runtime; a hosted OpenAI endpoint can be
// configured as an ordered fallback.
package embeddings

import (
	"context"
	"fmt"
	"log"

	"github.com/fabfab/docs-agent/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NamedEmbedder additionally reports which provider it talks to, so fallback
// decisions stay observable to callers.
type NamedEmbedder interface {
	Embedder
	Name() string
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewEmbedder builds the embedder chain from configuration: the configured
// primary provider, wrapped in a Fallback when a distinct secondary provider
// is configured and usable.
func NewEmbedder(cfg config.Config, logger *log.Logger) (NamedEmbedder, error) {
	if logger == nil {
		logger = log.Default()
	}

	primary, err := newProvider(cfg, cfg.Embeddings.Provider, cfg.Embeddings.Model)
	if err != nil {
		return nil, err
	}

	if cfg.Embeddings.Fallback == "" || cfg.Embeddings.Fallback == cfg.Embeddings.Provider {
		return primary, nil
	}

	secondary, err := newProvider(cfg, cfg.Embeddings.Fallback, cfg.Embeddings.FallbackModel)
	if err != nil {
		// A fallback that cannot be constructed (typically a missing API
		// key) is not fatal; the primary still serves every call. It must
		// not be silent either, or the operator believes degradation is in
		// place when it is not.
		logger.Printf("embedding fallback %s disabled: %v", cfg.Embeddings.Fallback, err)
		return primary, nil
	}

	return NewFallback(logger, primary, secondary), nil
}

func newProvider(cfg config.Config, provider, model string) (NamedEmbedder, error) {
	opts := Options{
		Provider:      provider,
		Model:         model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embeddings selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
