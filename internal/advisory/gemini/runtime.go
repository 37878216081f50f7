// Package gemini adapts the Gemini API to the advisory Runtime interface.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/financegpt/internal/advisory"
)

// Runtime wraps a genai client.
type Runtime struct {
	client *genai.Client
}

// New creates a Gemini runtime. baseURL is optional and points the client at
// a gateway instead of the public endpoint.
func New(ctx context.Context, apiKey, baseURL string) (*Runtime, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini.New: create genai client: %w", err)
	}
	return &Runtime{client: client}, nil
}

// Name identifies the runtime in logs and status output.
func (r *Runtime) Name() string {
	return "gemini"
}

// Generate sends the prompt with the system text as system instruction.
func (r *Runtime) Generate(ctx context.Context, req advisory.Request) (advisory.Response, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
	}

	resp, err := r.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return advisory.Response{}, fmt.Errorf("gemini.Generate: generate content: %w", err)
	}
	return advisory.Response{Text: resp.Text()}, nil
}

// ListModels returns model names without their "models/" prefix.
func (r *Runtime) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range r.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("gemini.ListModels: %w", err)
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
