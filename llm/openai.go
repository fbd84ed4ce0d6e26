package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fabfab/docs-agent/config"
)

// groqBaseURL points go-openai at Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

type openAIClient struct {
	client   *openai.Client
	model    string
	provider string
}

func NewOpenAIClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		provider: config.ProviderOpenAI,
	}
}

// NewGroqClient reuses the OpenAI wire protocol against Groq's endpoint.
func NewGroqClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.GroqAPIKey)
	cfg.BaseURL = groqBaseURL

	return &openAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		provider: config.ProviderGroq,
	}
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
	}

	req.Messages = make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("create chat completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("chat completion returned no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}
