// Package embedding turns text into vectors through one of several providers.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"repochat/internal/config"
	"repochat/internal/errors"
	"repochat/internal/retry"
)

// Embedder produces embedding vectors. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// New builds the embedder selected by cfg.Provider.
func New(ctx context.Context, cfg config.EmbeddingConfig, policy retry.Policy, logger *slog.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "hash":
		return NewHash(cfg.Dimensions), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}, policy, logger)
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, policy, logger), nil
	case "genai":
		return NewGenAI(ctx, os.Getenv(cfg.APIKeyEnv), cfg.Model, cfg.TaskType, policy)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// serviceError wraps a final provider failure.
func serviceError(provider string, err error) error {
	code := errors.ExternalServiceError
	var se *retry.StatusError
	if asStatus(err, &se) && se.StatusCode == 429 {
		code = errors.RateLimited
	}
	return errors.Wrap(code, provider+" embedding request failed", err).WithDetails("provider", provider)
}
