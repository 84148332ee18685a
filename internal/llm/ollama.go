package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"repochat/internal/retry"
)

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	policy      retry.Policy
}

// NewOllama creates a generator. Empty values default to localhost and llama3.2.
func NewOllama(baseURL, model string, temperature float64, policy retry.Policy) *Ollama {
	if baseURL == "" || strings.Contains(baseURL, "api.openai.com") {
		baseURL = "http://localhost:11434"
	}
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "llama3.2"
	}
	return &Ollama{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{},
		policy:      policy,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete runs a non-streaming generation.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Options: map[string]any{"temperature": o.temperature},
	})
	if err != nil {
		return "", err
	}

	text, err := retry.Do(ctx, o.policy, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			return "", retry.TransportError(ctx, err)
		}
		if err := retry.CheckResponse(resp); err != nil {
			return "", err
		}
		defer resp.Body.Close()

		var out generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decoding response: %w", err)
		}
		return out.Response, nil
	})
	if err != nil {
		return "", serviceError("ollama", err)
	}
	return text, nil
}
