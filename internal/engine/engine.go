// Package engine wires ingestion, sessions, retrieval and background jobs
// together for the HTTP server and the CLI.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"repochat/internal/chunking"
	"repochat/internal/config"
	"repochat/internal/embedding"
	"repochat/internal/errors"
	"repochat/internal/fetch"
	"repochat/internal/ingest"
	"repochat/internal/jobs"
	"repochat/internal/llm"
	"repochat/internal/retriever"
	"repochat/internal/retry"
	"repochat/internal/session"
	"repochat/internal/version"
)

// Deps overrides the external collaborators. Nil fields are built from config.
type Deps struct {
	Fetcher   fetch.Fetcher
	Embedder  embedding.Embedder
	Completer llm.Completer
}

// Engine is the application core shared by every front end.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	registry  *chunking.Registry
	ingestor  *ingest.Ingestor
	sessions  *session.Store
	retriever *retriever.Retriever
	embedder  embedding.Embedder

	jobStore *jobs.Store
	runner   *jobs.Runner

	// instance tags ingest results so jobs finished by an earlier process,
	// whose sessions are gone, are not reported as ready.
	instance  string
	startedAt time.Time
}

// New builds an Engine. Background jobs do not run until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*Engine, error) {
	policy := retry.FromConfig(cfg.Retry)

	registry := chunking.NewRegistry(chunking.Options{
		FixedSize:         cfg.Chunking.FixedSize,
		FixedOverlap:      cfg.Chunking.FixedOverlap,
		LanguageChunkSize: cfg.Chunking.LanguageChunkSize,
	})
	if cfg.Chunking.LanguagesFile != "" {
		if err := registry.LoadLanguageFile(cfg.Chunking.LanguagesFile); err != nil {
			return nil, err
		}
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		git := fetch.NewGit(cfg.Ingest.GitBinary, cfg.Ingest.FetchTimeout(), policy, logger)
		git.AllowLocal = cfg.Ingest.AllowLocal
		fetcher = git
		if cfg.Ingest.AllowLocal {
			fetcher = &fetch.Auto{Git: git, Dir: &fetch.Dir{}}
		}
	}

	embedder := deps.Embedder
	if embedder == nil {
		var err error
		if embedder, err = embedding.New(ctx, cfg.Embedding, policy, logger); err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	completer := deps.Completer
	if completer == nil {
		var err error
		if completer, err = llm.New(ctx, cfg.LLM, policy, logger); err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	ingestor, err := ingest.New(fetcher, chunking.NewStrategy(registry), embedder, ingest.OptionsFromConfig(cfg.Ingest), logger)
	if err != nil {
		return nil, err
	}

	jobStore, err := jobs.OpenStore(cfg.Jobs.DBPath, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(cfg.Sessions.Shards)
	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		ingestor:  ingestor,
		sessions:  sessions,
		retriever: retriever.New(sessions, embedder, completer, cfg.Retrieval.TopK, logger),
		embedder:  embedder,
		jobStore:  jobStore,
		runner:    jobs.NewRunner(jobStore, logger, jobs.RunnerConfigFrom(cfg.Jobs)),
		instance:  uuid.New().String(),
		startedAt: time.Now(),
	}
	e.runner.RegisterHandler(jobs.JobTypeIngestRepository, e.handleIngest)

	logger.Debug("Engine ready",
		"embedding", embedder.Name(),
		"dimensions", embedder.Dimensions(),
		"languages", len(registry.Languages()),
	)
	return e, nil
}

// Start begins processing background jobs.
func (e *Engine) Start() error {
	return e.runner.Start()
}

// Close stops the job runner and closes the job database.
func (e *Engine) Close(timeout time.Duration) error {
	var firstErr error
	if e.runner.IsRunning() {
		firstErr = e.runner.Stop(timeout)
	}
	if err := e.jobStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Registry returns the language registry in use.
func (e *Engine) Registry() *chunking.Registry { return e.registry }

// Clone ingests source and registers a session for it.
func (e *Engine) Clone(ctx context.Context, source string) (session.Summary, error) {
	return e.clone(ctx, source, nil)
}

// CloneWithProgress is Clone with progress reporting.
func (e *Engine) CloneWithProgress(ctx context.Context, source string, progress ingest.ProgressFunc) (session.Summary, error) {
	return e.clone(ctx, source, progress)
}

func (e *Engine) clone(ctx context.Context, source string, progress ingest.ProgressFunc) (session.Summary, error) {
	source = strings.TrimSpace(source)
	idx, report, err := e.ingestor.IngestWithProgress(ctx, source, progress)
	if err != nil {
		return session.Summary{}, err
	}
	// A cancelled job must not leave a session behind.
	if err := ctx.Err(); err != nil {
		return session.Summary{}, err
	}

	id, err := e.sessions.Register(idx, session.Meta{
		Source:    source,
		Files:     report.Files,
		Fragments: report.Fragments,
		Warnings:  report.Warnings(),
	})
	if err != nil {
		return session.Summary{}, err
	}
	e.logger.Info("Session created", "session", id, "source", source, "fragments", report.Fragments)
	return e.sessions.Summary(id)
}

// SubmitClone queues a background ingestion and returns the job id.
func (e *Engine) SubmitClone(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", errors.New(errors.InvalidInput, "Invalid input")
	}
	job, err := jobs.NewJob(jobs.JobTypeIngestRepository, jobs.IngestScope{Source: source})
	if err != nil {
		return "", errors.Wrap(errors.InternalError, "failed to create job", err)
	}
	if err := e.runner.Submit(job); err != nil {
		return "", errors.Wrap(errors.InternalError, "failed to submit job", err)
	}
	return job.ID, nil
}

func (e *Engine) handleIngest(ctx context.Context, job *jobs.Job, progress func(int)) (interface{}, error) {
	scope, err := jobs.ParseIngestScope(job.Scope)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput, "invalid job scope", err)
	}
	start := time.Now()
	summary, err := e.clone(ctx, scope.Source, func(pct int, _ string) { progress(pct) })
	if err != nil {
		return nil, err
	}
	return &jobs.IngestResult{
		SessionID: summary.ID,
		Files:     summary.Files,
		Fragments: summary.Fragments,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
		Warnings:  summary.Warnings,
		Instance:  e.instance,
	}, nil
}

// Query answers question within a session.
func (e *Engine) Query(ctx context.Context, sessionID, question string) (string, error) {
	return e.retriever.Answer(ctx, sessionID, question)
}

// Ask is Query with the rephrased question and sources.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (*retriever.Result, error) {
	return e.retriever.Ask(ctx, sessionID, question)
}

// Sessions lists every session.
func (e *Engine) Sessions() []session.Summary { return e.sessions.List() }

// Session returns one session summary.
func (e *Engine) Session(id string) (session.Summary, error) { return e.sessions.Summary(id) }

// History returns a session's turns.
func (e *Engine) History(id string) ([]session.Turn, error) { return e.sessions.History(id) }

// JobView is the externally visible state of an ingestion job.
type JobView struct {
	ID          string             `json:"job_id"`
	Type        jobs.JobType       `json:"type"`
	Status      jobs.State         `json:"status"`
	Phase       jobs.JobStatus     `json:"phase"`
	Progress    int                `json:"progress"`
	SessionID   string             `json:"session_id,omitempty"`
	Error       string             `json:"error,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Result      *jobs.IngestResult `json:"result,omitempty"`
}

// JobList is one page of jobs.
type JobList struct {
	Jobs       []*JobView `json:"jobs"`
	TotalCount int        `json:"totalCount"`
}

// viewOf renders job. A completed ingest from another process reports failed:
// its session lived in that process's memory and the id may now be reused.
func (e *Engine) viewOf(job *jobs.Job) (*JobView, error) {
	v := &JobView{
		ID:          job.ID,
		Type:        job.Type,
		Status:      job.State(),
		Phase:       job.Status,
		Progress:    job.Progress,
		Error:       job.Error,
		ErrorCode:   job.ErrorCode,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Type == jobs.JobTypeIngestRepository && job.Status == jobs.JobCompleted {
		res, err := jobs.ParseIngestResult(job.Result)
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, "corrupt job result", err).WithDetails("jobId", job.ID)
		}
		v.Result = res
		switch {
		case res == nil:
		case res.Instance == e.instance:
			v.SessionID = res.SessionID
		default:
			res.SessionID = ""
			v.Status = jobs.StateFailed
			v.ErrorCode = string(errors.SessionNotFound)
			v.Error = "session expired: the server restarted after this job completed"
		}
	}
	return v, nil
}

// Job returns the state of a background ingestion.
func (e *Engine) Job(id string) (*JobView, error) {
	job, err := e.runner.GetJob(id)
	if err != nil {
		return nil, err
	}
	return e.viewOf(job)
}

// WaitJob blocks until the job finishes or ctx ends.
func (e *Engine) WaitJob(ctx context.Context, id string) (*JobView, error) {
	job, err := e.runner.Wait(ctx, id, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return e.viewOf(job)
}

// Jobs lists jobs, newest first.
func (e *Engine) Jobs(opts jobs.ListJobsOptions) (*JobList, error) {
	resp, err := e.runner.ListJobs(opts)
	if err != nil {
		return nil, err
	}
	list := &JobList{Jobs: make([]*JobView, 0, len(resp.Jobs)), TotalCount: resp.TotalCount}
	for _, job := range resp.Jobs {
		v, err := e.viewOf(job)
		if err != nil {
			return nil, err
		}
		list.Jobs = append(list.Jobs, v)
	}
	return list, nil
}

// CancelJob cancels a queued or running job.
func (e *Engine) CancelJob(id string) error {
	return e.runner.Cancel(id)
}

// Health is a point-in-time liveness report.
type Health struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Sessions  int                    `json:"sessions"`
	Jobs      map[string]interface{} `json:"jobs"`
}

// Health reports liveness and counters.
func (e *Engine) Health() Health {
	return Health{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(e.startedAt).Round(time.Second).String(),
		Sessions:  e.sessions.Len(),
		Jobs:      e.runner.Stats(),
	}
}
