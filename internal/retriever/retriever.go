// Package retriever answers questions about an ingested repository using its
// session history, the session index and a language model.
package retriever

import (
	"bytes"
	"context"
	"embed"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"repochat/internal/embedding"
	"repochat/internal/errors"
	"repochat/internal/llm"
	"repochat/internal/session"
	"repochat/internal/vectorindex"
)

// NotFoundAnswer is what the model is told to reply when the context is insufficient.
const NotFoundAnswer = "Could not find an answer"

// DefaultTopK is the number of fragments fed to the model.
const DefaultTopK = 2

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Source is a retrieved fragment reference.
type Source struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Result is a full answer with the intermediate query and sources.
type Result struct {
	Answer    string   `json:"answer"`
	Rephrased string   `json:"rephrased"`
	Sources   []Source `json:"sources"`
}

// Retriever runs the rephrase, retrieve, generate, append cycle.
type Retriever struct {
	store    *session.Store
	embedder embedding.Embedder
	llm      llm.Completer
	topK     int
	logger   *slog.Logger
}

// New creates a Retriever. topK <= 0 uses DefaultTopK.
func New(store *session.Store, e embedding.Embedder, c llm.Completer, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, embedder: e, llm: c, topK: topK, logger: logger}
}

// Answer returns the model's answer to question within the session.
func (r *Retriever) Answer(ctx context.Context, sessionID, question string) (string, error) {
	res, err := r.Ask(ctx, sessionID, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Ask is Answer with the rephrased question and sources. History is only
// appended when every step succeeded.
func (r *Retriever) Ask(ctx context.Context, sessionID, question string) (*Result, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(question) == "" {
		return nil, errors.New(errors.InvalidInput, "Invalid input")
	}
	sess, err := r.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rephrased, err := r.Rephrase(ctx, sess.History(), question)
	if err != nil {
		return nil, queryFailed(sessionID, "rephrase", err)
	}

	hits, err := r.Retrieve(ctx, sess.Index, rephrased)
	if err != nil {
		return nil, queryFailed(sessionID, "retrieve", err)
	}

	answer, err := r.generate(ctx, hits, question)
	if err != nil {
		return nil, queryFailed(sessionID, "generate", err)
	}

	if err := r.store.AppendTurns(sessionID, rephrased, answer); err != nil {
		return nil, err
	}

	res := &Result{Answer: answer, Rephrased: rephrased, Sources: make([]Source, len(hits))}
	for i, h := range hits {
		res.Sources[i] = Source{Path: h.Fragment.Path, Score: h.Score}
	}
	r.logger.Info("Answered question",
		"session", sessionID,
		"sources", len(hits),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// Rephrase turns a follow-up into a standalone question. With no history the
// question is returned unchanged and the model is not called, for every first
// question in a session: there are no earlier turns for it to refer to, so a
// rewrite could only paraphrase it.
func (r *Retriever) Rephrase(ctx context.Context, history []session.Turn, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	prompt, err := render("rephrase.tmpl", map[string]any{"History": history, "Question": question})
	if err != nil {
		return "", err
	}
	out, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

// Retrieve returns the topK fragments most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, idx *vectorindex.Index, query string) ([]vectorindex.Result, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return idx.Search(vec, r.topK)
}

func (r *Retriever) generate(ctx context.Context, hits []vectorindex.Result, question string) (string, error) {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Fragment.Text
	}
	prompt, err := render("answer.tmpl", map[string]any{
		"Context":  strings.Join(texts, "\n\n"),
		"Question": question,
		"NotFound": NotFoundAnswer,
	})
	if err != nil {
		return "", err
	}
	out, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func queryFailed(sessionID, stage string, cause error) error {
	return errors.Wrap(errors.QueryFailed, "Query failed", cause).
		WithDetails("sessionId", sessionID).
		WithDetails("stage", stage)
}
