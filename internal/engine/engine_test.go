package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repochat/internal/config"
	"repochat/internal/embedding"
	"repochat/internal/errors"
	"repochat/internal/jobs"
	"repochat/internal/llm"
	"repochat/internal/retriever"
	"repochat/internal/session"
	"repochat/internal/slogutil"
	"repochat/internal/testutil"
)

// snippetEcho answers with the code snippet section of the prompt.
func snippetEcho(_ context.Context, prompt string) (string, error) {
	_, after, ok := strings.Cut(prompt, "Code snippets:\n")
	if !ok {
		return "standalone question", nil
	}
	snippets, _, _ := strings.Cut(after, "\n\nQuestion:")
	return "Based on: " + snippets, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Ingest.WorkDir = t.TempDir()
	cfg.Ingest.AllowLocal = true
	cfg.Jobs.Workers = 1
	return cfg
}

func newEngineWith(t *testing.T, cfg *config.Config, complete llm.Func) *Engine {
	t.Helper()
	e, err := New(context.Background(), cfg, slogutil.NewDiscardLogger(), Deps{
		Embedder:  embedding.NewHash(128),
		Completer: complete,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(5 * time.Second) })
	return e
}

func newTestEngine(t *testing.T, complete llm.Func) *Engine {
	t.Helper()
	return newEngineWith(t, testConfig(t), complete)
}

func TestEngine_CloneAndQuery(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	ctx := context.Background()

	summary, err := e.Clone(ctx, testutil.SampleRepo(t))
	require.NoError(t, err)
	require.Equal(t, "1", summary.ID)
	require.Equal(t, 4, summary.Fragments)
	require.Equal(t, 2, summary.Files)

	res, err := e.Ask(ctx, summary.ID, "what does a.py do?")
	require.NoError(t, err)
	require.Equal(t, "a.py", res.Sources[0].Path)
	require.Contains(t, res.Answer, "hello, a.py")

	history, err := e.History(summary.ID)
	require.NoError(t, err)
	require.Equal(t, []session.Turn{
		{Role: session.RoleUser, Content: "what does a.py do?"},
		{Role: session.RoleAssistant, Content: res.Answer},
	}, history)

	require.Len(t, e.Sessions(), 1)
	testutil.RequireEmptyDir(t, e.Config().Ingest.WorkDir)
}

func TestEngine_QueryUnknownSession(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	_, err := e.Query(context.Background(), "42", "anything?")
	require.True(t, errors.HasCode(err, errors.SessionNotFound))
}

func TestEngine_EmptyRepositoryCreatesNoSession(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	src := testutil.WriteTree(t, map[string]string{"logo.png": "\x89PNG\x00\x00"})

	_, err := e.Clone(context.Background(), src)
	require.Equal(t, errors.IngestionEmpty, errors.CodeOf(err))
	require.Empty(t, e.Sessions())
}

func TestEngine_QueryFailureKeepsHistory(t *testing.T) {
	e := newTestEngine(t, func(context.Context, string) (string, error) {
		return "", errors.New(errors.ExternalServiceError, "model unavailable")
	})
	summary, err := e.Clone(context.Background(), testutil.SampleRepo(t))
	require.NoError(t, err)

	_, err = e.Query(context.Background(), summary.ID, "what does a.py do?")
	require.Equal(t, errors.QueryFailed, errors.CodeOf(err))

	history, err := e.History(summary.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestEngine_SubmitClone(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	require.NoError(t, e.Start())

	jobID, err := e.SubmitClone(testutil.SampleRepo(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	view, err := e.WaitJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateReady, view.Status)
	require.Equal(t, "1", view.SessionID)
	require.Equal(t, 4, view.Result.Fragments)

	answer, err := e.Query(ctx, view.SessionID, "what does a.py do?")
	require.NoError(t, err)
	require.NotEqual(t, retriever.NotFoundAnswer, answer)

	list, err := e.Jobs(jobs.ListJobsOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalCount)
	require.Equal(t, "1", list.Jobs[0].SessionID)
}

func TestEngine_JobFromEarlierProcessIsExpired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.DBPath = filepath.Join(t.TempDir(), "jobs.db")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := newEngineWith(t, cfg, snippetEcho)
	require.NoError(t, first.Start())
	jobID, err := first.SubmitClone(testutil.SampleRepo(t))
	require.NoError(t, err)
	view, err := first.WaitJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateReady, view.Status)
	require.Equal(t, "1", view.SessionID)
	require.NoError(t, first.Close(5*time.Second))

	second := newEngineWith(t, cfg, snippetEcho)
	require.NoError(t, second.Start())
	other := testutil.WriteTree(t, map[string]string{"b.py": "print('other repository')\n"})
	summary, err := second.Clone(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "1", summary.ID)

	view, err = second.Job(jobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateFailed, view.Status)
	require.Equal(t, jobs.JobCompleted, view.Phase)
	require.Equal(t, string(errors.SessionNotFound), view.ErrorCode)
	require.Empty(t, view.SessionID)
	require.Empty(t, view.Result.SessionID)

	list, err := second.Jobs(jobs.ListJobsOptions{})
	require.NoError(t, err)
	require.Len(t, list.Jobs, 1)
	require.Equal(t, jobs.StateFailed, list.Jobs[0].Status)
	require.Empty(t, list.Jobs[0].SessionID)
}

func TestEngine_LocalSourcesDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.AllowLocal = false
	e := newEngineWith(t, cfg, snippetEcho)

	for _, source := range []string{testutil.SampleRepo(t), "file://" + testutil.SampleRepo(t)} {
		_, err := e.Clone(context.Background(), source)
		require.Equal(t, errors.IngestionFetchFailed, errors.CodeOf(err), source)
		require.Equal(t, errors.FetchBadSource, errors.FetchKindOf(err), source)
	}
	require.Empty(t, e.Sessions())
}

func TestEngine_SubmitCloneFailure(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	require.NoError(t, e.Start())

	jobID, err := e.SubmitClone(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	view, err := e.WaitJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateFailed, view.Status)
	require.Equal(t, string(errors.IngestionFetchFailed), view.ErrorCode)
	require.Empty(t, view.SessionID)
	require.Empty(t, e.Sessions())
}

func TestEngine_SubmitCloneRejectsBlankSource(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	_, err := e.SubmitClone("  ")
	require.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestEngine_UnknownJob(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	_, err := e.Job("nope")
	require.Equal(t, errors.JobNotFound, errors.CodeOf(err))
	require.Equal(t, errors.JobNotFound, errors.CodeOf(e.CancelJob("nope")))
}

func TestEngine_Health(t *testing.T) {
	e := newTestEngine(t, snippetEcho)
	_, err := e.Clone(context.Background(), testutil.SampleRepo(t))
	require.NoError(t, err)

	h := e.Health()
	require.Equal(t, "healthy", h.Status)
	require.Equal(t, 1, h.Sessions)
}

func TestNew_LanguagesFile(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"langs.toml": "[extensions]\npyi = \"python\"\n"})
	cfg := config.DefaultConfig()
	cfg.Chunking.LanguagesFile = filepath.Join(dir, "langs.toml")

	e, err := New(context.Background(), cfg, slogutil.NewDiscardLogger(), Deps{
		Embedder:  embedding.NewHash(16),
		Completer: llm.Func(snippetEcho),
	})
	require.NoError(t, err)
	defer func() { _ = e.Close(time.Second) }()

	lang, ok := e.Registry().LanguageFor("stubs.pyi")
	require.True(t, ok)
	require.Equal(t, "python", string(lang))
}
