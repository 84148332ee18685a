package embedding

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/genai"

	"repochat/internal/retry"
)

// GenAI generates embeddings with the Gemini API.
type GenAI struct {
	client   *genai.Client
	model    string
	taskType string
	policy   retry.Policy
}

// NewGenAI creates a Gemini embedder.
func NewGenAI(ctx context.Context, apiKey, model, taskType string, policy retry.Policy) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai embedding: API key is required")
	}
	if model == "" || model == "text-embedding-3-small" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAI{client: client, model: model, taskType: parseTaskType(taskType), policy: policy}, nil
}

func parseTaskType(s string) string {
	switch s {
	case "SEMANTIC_SIMILARITY", "CLASSIFICATION", "CLUSTERING", "RETRIEVAL_DOCUMENT",
		"RETRIEVAL_QUERY", "CODE_RETRIEVAL_QUERY", "QUESTION_ANSWERING", "FACT_VERIFICATION":
		return s
	default:
		return "RETRIEVAL_DOCUMENT"
	}
}

// Name returns the engine name.
func (e *GenAI) Name() string { return "genai:" + e.model }

// Dimensions returns 768, the default output size of gemini-embedding-001.
func (e *GenAI) Dimensions() int { return 768 }

// Embed generates an embedding for a single text.
func (e *GenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch uses the API's native batching.
func (e *GenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	out, err := retry.Do(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: e.taskType})
		if err != nil {
			return nil, classifyGenAI(err)
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		}
		vecs := make([][]float32, len(result.Embeddings))
		for i, emb := range result.Embeddings {
			vecs[i] = emb.Values
		}
		return vecs, nil
	})
	if err != nil {
		return nil, serviceError("genai", err)
	}
	return out, nil
}

// classifyGenAI marks rate limits and server errors as retryable.
func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if asAPIError(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code >= 500) {
		return retry.Transient(err)
	}
	return err
}

func asAPIError(err error, target *genai.APIError) bool {
	return stderrors.As(err, target)
}
