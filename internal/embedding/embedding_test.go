package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repochat/internal/config"
	"repochat/internal/errors"
	"repochat/internal/retry"
	"repochat/internal/slogutil"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(64)
	a, err := h.Embed(context.Background(), "func parseConfig() error")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "func parseConfig() error")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestHash_SimilarTextsAreCloser(t *testing.T) {
	h := NewHash(0)
	require.Equal(t, DefaultHashDimensions, h.Dimensions())
	ctx := context.Background()

	query, _ := h.Embed(ctx, "what does main print")
	code, _ := h.Embed(ctx, "def main():\n    print('hello')")
	other, _ := h.Embed(ctx, "license terms and warranty disclaimers")

	require.Greater(t, cosine(query, code), cosine(query, other))
}

func TestHash_EmptyTextIsZeroVector(t *testing.T) {
	v, err := NewHash(8).Embed(context.Background(), "  \n ")
	require.NoError(t, err)
	require.Equal(t, make([]float32, 8), v)
}

func TestTokenize(t *testing.T) {
	require.Equal(t,
		[]string{"parseconfig", "parse", "config", "http", "server_name", "server", "name", "x1"},
		Tokenize("parseConfig(HTTP, server_name) x1"))
	require.Equal(t, []string{"httpserver", "http", "server"}, Tokenize("HTTPServer"))
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"a", "b"}, req.Input)
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "m"}, fastPolicy(), slogutil.NewDiscardLogger())
	require.NoError(t, err)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
	require.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"}, fastPolicy(), slogutil.NewDiscardLogger())
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	require.Equal(t, errors.ExternalServiceError, errors.CodeOf(err))
	require.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_RateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"}, fastPolicy(), slogutil.NewDiscardLogger())
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	require.Equal(t, errors.RateLimited, errors.CodeOf(err))
}

func TestOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{}, fastPolicy(), slogutil.NewDiscardLogger())
	require.Error(t, err)
}

func TestOllama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "", fastPolicy(), slogutil.NewDiscardLogger())
	out, err := e.EmbedBatch(context.Background(), []string{"a", "bcd"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}, {3}}, out)
	require.Equal(t, "ollama:nomic-embed-text", e.Name())
}

func TestNew_SelectsProvider(t *testing.T) {
	ctx := context.Background()
	logger := slogutil.NewDiscardLogger()

	e, err := New(ctx, config.EmbeddingConfig{Provider: "hash", Dimensions: 32}, fastPolicy(), logger)
	require.NoError(t, err)
	require.Equal(t, "hash", e.Name())
	require.Equal(t, 32, e.Dimensions())

	t.Setenv("TEST_EMBED_KEY", "secret")
	e, err = New(ctx, config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "TEST_EMBED_KEY", Model: "text-embedding-3-small"}, fastPolicy(), logger)
	require.NoError(t, err)
	require.Equal(t, "openai:text-embedding-3-small", e.Name())

	_, err = New(ctx, config.EmbeddingConfig{Provider: "nope"}, fastPolicy(), logger)
	require.Error(t, err)
}
