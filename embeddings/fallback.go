package embeddings

import (
	"context"
	"fmt"
	"log"
)

// Fallback tries an ordered list of providers and the first success wins.
// Queries and indexing go through the same chain, so a store populated while
// the primary was down stays searchable.
type Fallback struct {
	providers []NamedEmbedder
	logger    *log.Logger
}

// Result carries the vectors together with the provider that produced them,
// so callers can observe which provider served a call instead of inferring
// it from logs.
type Result struct {
	Vectors  [][]float32
	Provider string
}

func NewFallback(logger *log.Logger, providers ...NamedEmbedder) *Fallback {
	if logger == nil {
		logger = log.Default()
	}
	return &Fallback{providers: providers, logger: logger}
}

func (f *Fallback) Name() string {
	if len(f.providers) == 0 {
		return "none"
	}
	return f.providers[0].Name()
}

// EmbedWithProvider tries each provider in order and returns the vectors of
// the first that succeeds, along with its name.
func (f *Fallback) EmbedWithProvider(ctx context.Context, texts []string) (Result, error) {
	var lastErr error
	for i, provider := range f.providers {
		vectors, err := provider.Embed(ctx, texts)
		if err == nil {
			if i > 0 {
				f.logger.Printf("embedding provider %s unavailable, served by %s", f.providers[0].Name(), provider.Name())
			}
			return Result{Vectors: vectors, Provider: provider.Name()}, nil
		}
		f.logger.Printf("embedding provider %s failed: %v", provider.Name(), err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedding providers configured")
	}
	return Result{}, fmt.Errorf("all embedding providers failed: %w", lastErr)
}

func (f *Fallback) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := f.EmbedWithProvider(ctx, texts)
	if err != nil {
		return nil, err
	}
	return result.Vectors, nil
}

var _ NamedEmbedder = (*Fallback)(nil)
