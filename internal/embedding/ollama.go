package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"repochat/internal/retry"
)

// Ollama calls a local Ollama server's /api/embeddings endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

// NewOllama creates an Ollama embedder. Empty values default to localhost and nomic-embed-text.
func NewOllama(baseURL, model string, policy retry.Policy, logger *slog.Logger) *Ollama {
	if baseURL == "" || strings.Contains(baseURL, "api.openai.com") {
		baseURL = "http://localhost:11434"
	}
	if model == "" || strings.HasPrefix(model, "text-embedding-") {
		model = "nomic-embed-text"
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
		policy:  policy,
		logger:  logger,
	}
}

// Name returns the engine name.
func (a *Ollama) Name() string { return "ollama:" + a.model }

// Dimensions is decided by the model.
func (a *Ollama) Dimensions() int { return 0 }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (a *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	policy := a.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("Retrying embedding request", "provider", "ollama", "attempt", attempt, "delay", delay, "error", err)
	}
	v, err := retry.Do(ctx, policy, func(ctx context.Context) ([]float32, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, retry.TransportError(ctx, err)
		}
		if err := retry.CheckResponse(resp); err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var out ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return out.Embedding, nil
	})
	if err != nil {
		return nil, serviceError("ollama", err)
	}
	return v, nil
}

// EmbedBatch calls Embed per text; Ollama's endpoint takes one prompt at a time.
func (a *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := a.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
