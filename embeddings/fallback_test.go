package embeddings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/docs-agent/config"
)

type stubProvider struct {
	name    string
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

var _ NamedEmbedder = (*stubProvider)(nil)

func TestFallbackPrimarySuccessWins(t *testing.T) {
	primary := &stubProvider{name: "ollama", vectors: [][]float32{{0.1, 0.2}}}
	secondary := &stubProvider{name: "openai", vectors: [][]float32{{0.9, 0.9}}}
	f := NewFallback(log.New(io.Discard, "", 0), primary, secondary)

	result, err := f.EmbedWithProvider(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "ollama" {
		t.Fatalf("expected primary provider, got %q", result.Provider)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestFallbackSubstitutesSecondary(t *testing.T) {
	primary := &stubProvider{name: "ollama", err: errors.New("connection refused")}
	secondary := &stubProvider{name: "openai", vectors: [][]float32{{0.3}}}
	f := NewFallback(log.New(io.Discard, "", 0), primary, secondary)

	result, err := f.EmbedWithProvider(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "openai" {
		t.Fatalf("expected fallback provider, got %q", result.Provider)
	}
	if len(result.Vectors) != 1 {
		t.Fatalf("expected vectors from secondary, got %d", len(result.Vectors))
	}
}

func TestFallbackAllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "ollama", err: errors.New("down")}
	secondary := &stubProvider{name: "openai", err: errors.New("also down")}
	f := NewFallback(log.New(io.Discard, "", 0), primary, secondary)

	if _, err := f.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider: config.ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
	}

	if _, err := NewEmbedder(cfg, log.New(io.Discard, "", 0)); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewEmbedderFallbackChain(t *testing.T) {
	cfg := config.Config{
		OllamaHost:   "http://localhost:11434",
		OpenAIAPIKey: "sk-test",
		Embeddings: config.EmbeddingConfig{
			Provider:      config.ProviderOllama,
			Model:         "nomic-embed-text",
			Fallback:      config.ProviderOpenAI,
			FallbackModel: "text-embedding-3-small",
		},
	}

	embedder, err := NewEmbedder(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := embedder.(*Fallback); !ok {
		t.Fatalf("expected a fallback chain, got %T", embedder)
	}
}

func TestNewEmbedderSkipsUnusableFallbackAndLogsIt(t *testing.T) {
	// No OpenAI key: the chain degrades to the primary alone.
	cfg := config.Config{
		OllamaHost: "http://localhost:11434",
		Embeddings: config.EmbeddingConfig{
			Provider:      config.ProviderOllama,
			Model:         "nomic-embed-text",
			Fallback:      config.ProviderOpenAI,
			FallbackModel: "text-embedding-3-small",
		},
	}

	var buf bytes.Buffer
	embedder, err := NewEmbedder(cfg, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.Name() != config.ProviderOllama {
		t.Fatalf("expected ollama primary, got %q", embedder.Name())
	}
	if _, ok := embedder.(*Fallback); ok {
		t.Fatal("expected plain primary embedder, got fallback chain")
	}
	if !strings.Contains(buf.String(), "embedding fallback openai disabled") {
		t.Fatalf("expected the dropped fallback to be logged, got %q", buf.String())
	}
}
