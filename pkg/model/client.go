// Package model wraps the hosted language-model collaborator behind a
// narrow invoke interface.
package model

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/jaaabir/tim-ai/pkg/chat"
)

// Client is the minimal model surface the agent needs; it is easy to stub
// in tests. Invoke is synchronous: the full reply is buffered before the
// transport layer chunks it out.
type Client interface {
	Invoke(ctx context.Context, msgs []chat.Message) (string, error)
}

// Config holds model collaborator settings.
type Config struct {
	// BaseURL points at any OpenAI-compatible endpoint, e.g. Groq or a
	// local Ollama. Empty keeps the library default.
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

// New creates a client for cfg.
func New(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
	}
}

func (c *OpenAIClient) Invoke(ctx context.Context, msgs []chat.Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toOpenAI(msgs),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

func toOpenAI(msgs []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}
