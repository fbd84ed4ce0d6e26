// Package config loads application configuration from the environment once
// at process start. Credentials are validated up front so a missing key for
// the selected provider fails before any network call is made.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"
)

const (
	StoreChromem  = "chromem"
	StorePostgres = "postgres"
)

type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`
	// Model overrides the provider default when set.
	Model string `env:"LLM_MODEL"`
}

type EmbeddingConfig struct {
	Provider string `env:"EMBEDDINGS_PROVIDER" envDefault:"ollama"`
	Model    string `env:"EMBEDDINGS_MODEL" envDefault:"nomic-embed-text"`
	// Fallback names the hosted provider substituted when the primary is
	// unreachable. Empty disables the fallback.
	Fallback      string `env:"EMBEDDINGS_FALLBACK" envDefault:"openai"`
	FallbackModel string `env:"EMBEDDINGS_FALLBACK_MODEL" envDefault:"text-embedding-3-small"`
	Dimension     int    `env:"EMBEDDINGS_DIMENSION" envDefault:"768"`
}

type Config struct {
	DocsURL     string        `env:"DOCS_URL"`
	CorePath    string        `env:"CORE_PATH" envDefault:"./core"`
	DBPath      string        `env:"DB_PATH" envDefault:"./vector_db"`
	Collection  string        `env:"COLLECTION" envDefault:"documentation"`
	Store       string        `env:"STORE_BACKEND" envDefault:"chromem"`
	PostgresDSN string        `env:"POSTGRES_DSN" envDefault:"postgres://localhost:5432/docs-agent?sslmode=disable"`
	ScrapeDelay time.Duration `env:"SCRAPE_DELAY" envDefault:"1s"`

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"200"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	GroqAPIKey    string `env:"GROQ_API_KEY"`
	OllamaHost    string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`

	LLM        LLMConfig
	Embeddings EmbeddingConfig
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the invariants every run relies on. Completion-provider
// credentials are checked separately by ValidateCompletion because scrape and
// ingest runs do not need them.
func (c Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.Store != StoreChromem && c.Store != StorePostgres {
		return fmt.Errorf("unknown store backend: %s", c.Store)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai embeddings selected but OPENAI_API_KEY not set")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embeddings.Provider)
	}
	return nil
}

// ValidateCompletion ensures the selected completion provider has its
// credential present. Called before query and interactive runs.
func (c Config) ValidateCompletion() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("groq provider selected but GROQ_API_KEY not set")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	return nil
}

// DefaultModel returns the per-provider completion model used when none is
// configured.
func (c Config) DefaultModel() string {
	switch c.LLM.Provider {
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderOllama:
		return "llama3.1:8b"
	default:
		return "gpt-4o-mini"
	}
}
