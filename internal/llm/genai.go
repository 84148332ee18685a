package llm

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/genai"

	"repochat/internal/retry"
)

// GenAI generates text with the Gemini API.
type GenAI struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	policy retry.Policy
}

// NewGenAI creates a Gemini generator.
func NewGenAI(ctx context.Context, apiKey, model string, temperature float64, maxTokens int, policy retry.Policy) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai llm: API key is required")
	}
	if model == "" || model == "gpt-4o-mini" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return &GenAI{client: client, model: model, config: cfg, policy: policy}, nil
}

// Complete generates a response for prompt.
func (g *GenAI) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
		if err != nil {
			var apiErr genai.APIError
			if stderrors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code >= 500) {
				return "", retry.Transient(err)
			}
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", serviceError("genai", err)
	}
	return text, nil
}
