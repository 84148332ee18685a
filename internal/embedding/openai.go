package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"repochat/internal/retry"
)

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// OpenAI calls an OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewOpenAI creates a client. The API key is required.
func NewOpenAI(cfg OpenAIConfig, policy retry.Policy, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAI{cfg: cfg, client: &http.Client{}, policy: policy, logger: logger}, nil
}

// Name returns the engine name.
func (o *OpenAI) Name() string { return "openai:" + o.cfg.Model }

// Dimensions returns the configured size, or 0 when the model decides.
func (o *OpenAI) Dimensions() int { return o.cfg.Dimensions }

// Embed embeds a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in one request.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(openAIRequest{Model: o.cfg.Model, Input: texts, Dimensions: o.cfg.Dimensions})
	if err != nil {
		return nil, err
	}

	policy := o.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		o.logger.Warn("Retrying embedding request", "provider", "openai", "attempt", attempt, "delay", delay, "error", err)
	}
	out, err := retry.Do(ctx, policy, func(ctx context.Context) ([][]float32, error) {
		return o.post(ctx, payload, len(texts))
	})
	if err != nil {
		return nil, serviceError("openai", err)
	}
	return out, nil
}

func (o *OpenAI) post(ctx context.Context, payload []byte, want int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, retry.TransportError(ctx, err)
	}
	if err := retry.CheckResponse(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if len(decoded.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(decoded.Data))
	}
	sort.Slice(decoded.Data, func(i, j int) bool { return decoded.Data[i].Index < decoded.Data[j].Index })

	out := make([][]float32, want)
	for i, d := range decoded.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

func asStatus(err error, target **retry.StatusError) bool {
	return stderrors.As(err, target)
}
