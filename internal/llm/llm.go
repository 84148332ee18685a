// Package llm sends single-turn prompts to a text generation provider.
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"repochat/internal/config"
	"repochat/internal/errors"
	"repochat/internal/retry"
)

// Completer returns the model's text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds the completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, policy retry.Policy, logger *slog.Logger) (Completer, error) {
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Retrying generation request", "provider", cfg.Provider, "attempt", attempt, "delay", delay, "error", err)
	}
	switch cfg.Provider {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("openai llm: %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAI(cfg.BaseURL, key, cfg.Model, cfg.Temperature, cfg.MaxTokens, policy), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Temperature, policy), nil
	case "genai":
		return NewGenAI(ctx, os.Getenv(cfg.APIKeyEnv), cfg.Model, cfg.Temperature, cfg.MaxTokens, policy)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Func adapts a function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func serviceError(provider string, err error) error {
	code := errors.ExternalServiceError
	var se *retry.StatusError
	if stderrors.As(err, &se) && se.StatusCode == 429 {
		code = errors.RateLimited
	}
	return errors.Wrap(code, provider+" generation request failed", err).WithDetails("provider", provider)
}
