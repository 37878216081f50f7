// Package openai adapts any OpenAI-compatible chat endpoint to the advisory
// Runtime interface. A local Ollama serves one at http://localhost:11434/v1.
package openai

import (
	"context"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/dvloznov/financegpt/internal/advisory"
)

// DefaultBaseURL is Ollama's OpenAI-compatible endpoint.
const DefaultBaseURL = "http://localhost:11434/v1"

// Ollama ignores the key, but the client refuses to send an empty bearer.
const placeholderKey = "ollama"

// Runtime talks to an OpenAI-compatible server.
type Runtime struct {
	client  *goopenai.Client
	baseURL string
}

// New creates a runtime for baseURL. An empty apiKey is replaced by a
// placeholder; httpClient may be nil.
func New(baseURL, apiKey string, httpClient *http.Client) *Runtime {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = placeholderKey
	}

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Runtime{client: goopenai.NewClientWithConfig(cfg), baseURL: baseURL}
}

// Name identifies the runtime in logs and status output.
func (r *Runtime) Name() string {
	return "openai-compatible(" + r.baseURL + ")"
}

// Generate sends one system + user chat completion.
func (r *Runtime) Generate(ctx context.Context, req advisory.Request) (advisory.Response, error) {
	resp, err := r.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return advisory.Response{}, fmt.Errorf("openai.Generate: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return advisory.Response{}, nil
	}
	return advisory.Response{Text: resp.Choices[0].Message.Content}, nil
}

// ListModels returns the model IDs the server reports.
func (r *Runtime) ListModels(ctx context.Context) ([]string, error) {
	list, err := r.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai.ListModels: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
