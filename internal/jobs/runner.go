package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"repochat/internal/config"
	"repochat/internal/errors"
)

// JobHandler executes a specific type of job.
type JobHandler func(ctx context.Context, job *Job, progress func(int)) (interface{}, error)

// Runner manages background job execution.
type Runner struct {
	store    *Store
	logger   *slog.Logger
	handlers map[JobType]JobHandler

	queue       chan *Job
	queueSize   int
	workerCount int

	done     chan struct{}
	stopOnce sync.Once
	cancel   map[string]context.CancelFunc

	mu sync.RWMutex
	wg sync.WaitGroup

	processedCount atomic.Int64
	failedCount    atomic.Int64

	recoveryInterval time.Duration
	retention        time.Duration
}

// RunnerConfig contains configuration for the job runner.
type RunnerConfig struct {
	QueueSize        int
	WorkerCount      int
	RecoveryInterval time.Duration // how often to re-enqueue jobs that did not fit the queue
	Retention        time.Duration // finished jobs older than this are deleted; 0 keeps them
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		QueueSize:        64,
		WorkerCount:      2,
		RecoveryInterval: 30 * time.Second,
		Retention:        24 * time.Hour,
	}
}

// RunnerConfigFrom converts the jobs section of the config.
func RunnerConfigFrom(c config.JobsConfig) RunnerConfig {
	rc := DefaultRunnerConfig()
	rc.QueueSize = c.QueueSize
	rc.WorkerCount = c.Workers
	rc.Retention = time.Duration(c.RetentionHours) * time.Hour
	return rc
}

// NewRunner creates a new job runner.
func NewRunner(store *Store, logger *slog.Logger, cfg RunnerConfig) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = 30 * time.Second
	}

	return &Runner{
		store:            store,
		logger:           logger,
		handlers:         make(map[JobType]JobHandler),
		queue:            make(chan *Job, cfg.QueueSize),
		queueSize:        cfg.QueueSize,
		workerCount:      cfg.WorkerCount,
		done:             make(chan struct{}),
		cancel:           make(map[string]context.CancelFunc),
		recoveryInterval: cfg.RecoveryInterval,
		retention:        cfg.Retention,
	}
}

// RegisterHandler registers a handler for a job type.
func (r *Runner) RegisterHandler(jobType JobType, handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
	r.logger.Debug("Registered job handler", "type", jobType)
}

// Start begins processing jobs.
func (r *Runner) Start() error {
	r.logger.Info("Starting job runner",
		"workers", r.workerCount,
		"queueSize", r.queueSize,
		"recoveryInterval", r.recoveryInterval.String(),
	)

	if n, err := r.store.FailInterrupted(); err != nil {
		r.logger.Warn("Failed to reset interrupted jobs", "error", err)
	} else if n > 0 {
		r.logger.Warn("Marked interrupted jobs as failed", "count", n)
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.recoveryLoop()

	r.recoverPendingJobs()
	return nil
}

// recoveryLoop re-enqueues queued jobs and purges old finished ones.
func (r *Runner) recoveryLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.recoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.recoverPendingJobs()
			r.cleanup()
		case <-r.done:
			r.logger.Debug("Recovery loop stopping")
			return
		}
	}
}

func (r *Runner) cleanup() {
	if r.retention <= 0 {
		return
	}
	n, err := r.store.CleanupOldJobs(r.retention)
	if err != nil {
		r.logger.Warn("Failed to clean up old jobs", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("Removed old jobs", "count", n)
	}
}

// recoverPendingJobs loads queued jobs from the database and enqueues them.
// Duplicates in the queue are harmless: only one worker can claim a job.
func (r *Runner) recoverPendingJobs() {
	pending, err := r.store.GetPendingJobs()
	if err != nil {
		r.logger.Warn("Failed to recover pending jobs", "error", err)
		return
	}
	if len(pending) == 0 || len(r.queue) > 0 {
		return
	}

	recovered := 0
enqueue:
	for _, job := range pending {
		select {
		case r.queue <- job:
			recovered++
		default:
			break enqueue
		}
	}

	if recovered > 0 {
		r.logger.Debug("Recovered pending jobs", "recovered", recovered, "remaining", len(pending)-recovered)
	}
}

// Stop shuts the runner down, cancelling running jobs.
func (r *Runner) Stop(timeout time.Duration) error {
	r.stopOnce.Do(func() {
		r.logger.Info("Stopping job runner")
		close(r.done)
	})

	r.mu.Lock()
	for id, cancel := range r.cancel {
		r.logger.Debug("Cancelling running job", "jobId", id)
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		r.logger.Info("Job runner stopped cleanly")
		return nil
	case <-timer.C:
		return fmt.Errorf("job runner shutdown timed out after %v", timeout)
	}
}

// Submit persists a job and queues it.
func (r *Runner) Submit(job *Job) error {
	if !r.IsRunning() {
		return fmt.Errorf("runner is shutting down")
	}
	if err := r.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	timer := time.NewTimer(100 * time.Millisecond)
	defer timer.Stop()
	select {
	case r.queue <- job:
		r.logger.Debug("Job queued", "jobId", job.ID, "type", job.Type)
		return nil
	case <-timer.C:
		// The recovery loop will pick it up from the database.
		r.logger.Warn("Job queue full, job will be processed later", "jobId", job.ID)
		return nil
	case <-r.done:
		return fmt.Errorf("runner is shutting down")
	}
}

// Cancel cancels a queued or running job.
func (r *Runner) Cancel(jobID string) error {
	job, err := r.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return errors.Newf(errors.JobNotFound, "job not found: %s", jobID)
	}
	if !job.CanCancel() {
		return errors.Newf(errors.InvalidInput, "job cannot be cancelled in state: %s", job.Status).
			WithDetails("jobId", jobID)
	}

	ok, err := r.store.CancelJob(jobID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.InvalidInput, "job finished before it could be cancelled").WithDetails("jobId", jobID)
	}

	r.mu.Lock()
	if cancel, running := r.cancel[jobID]; running {
		cancel()
	}
	r.mu.Unlock()

	r.logger.Info("Job cancelled", "jobId", jobID)
	return nil
}

// GetJob retrieves a job by ID.
func (r *Runner) GetJob(jobID string) (*Job, error) {
	job, err := r.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.Newf(errors.JobNotFound, "job not found: %s", jobID)
	}
	return job, nil
}

// ListJobs lists jobs with filters.
func (r *Runner) ListJobs(opts ListJobsOptions) (*ListJobsResponse, error) {
	return r.store.ListJobs(opts)
}

// Wait polls until the job reaches a terminal state or ctx ends.
func (r *Runner) Wait(ctx context.Context, jobID string, interval time.Duration) (*Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := r.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("Job worker started", "workerId", id)

	for {
		select {
		case job := <-r.queue:
			r.processJob(job)
		case <-r.done:
			r.logger.Debug("Job worker stopping", "workerId", id)
			return
		}
	}
}

func (r *Runner) processJob(job *Job) {
	claimed, err := r.store.ClaimJob(job)
	if err != nil {
		r.logger.Error("Failed to claim job", "jobId", job.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	r.mu.RLock()
	handler, ok := r.handlers[job.Type]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error("No handler for job type", "jobId", job.ID, "type", job.Type)
		job.MarkFailed(fmt.Errorf("no handler for job type: %s", job.Type), string(errors.InternalError))
		_ = r.store.UpdateJob(job)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel[job.ID] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.cancel, job.ID)
		r.mu.Unlock()
		cancel()
	}()

	// A cancel that landed between the claim and registering the cancel func.
	if current, err := r.store.GetJob(job.ID); err == nil && current != nil && current.Status == JobCancelled {
		return
	}

	r.logger.Info("Processing job", "jobId", job.ID, "type", job.Type)

	progress := func(pct int) {
		job.SetProgress(pct)
		if err := r.store.UpdateProgress(job.ID, job.Progress); err != nil {
			r.logger.Warn("Failed to update job progress", "jobId", job.ID, "error", err)
		}
	}

	startTime := time.Now()
	result, err := handler(ctx, job, progress)
	duration := time.Since(startTime)

	switch {
	case ctx.Err() != nil:
		job.MarkCancelled()
		r.logger.Info("Job cancelled", "jobId", job.ID, "duration", duration.String())
	case err != nil:
		job.MarkFailed(err, string(errors.CodeOf(err)))
		r.failedCount.Add(1)
		r.logger.Error("Job failed", "jobId", job.ID, "error", err, "duration", duration.String())
	default:
		if err := job.MarkCompleted(result); err != nil {
			r.logger.Error("Failed to serialize job result", "jobId", job.ID, "error", err)
			job.MarkFailed(err, string(errors.InternalError))
		} else {
			r.processedCount.Add(1)
			r.logger.Info("Job completed", "jobId", job.ID, "duration", duration.String())
		}
	}

	if err := r.store.UpdateJob(job); err != nil {
		r.logger.Error("Failed to save job final state", "jobId", job.ID, "error", err)
	}
}

// Stats returns runner statistics.
func (r *Runner) Stats() map[string]interface{} {
	r.mu.RLock()
	runningCount := len(r.cancel)
	r.mu.RUnlock()

	return map[string]interface{}{
		"queueLength":    len(r.queue),
		"queueCapacity":  r.queueSize,
		"runningJobs":    runningCount,
		"processedTotal": r.processedCount.Load(),
		"failedTotal":    r.failedCount.Load(),
		"workerCount":    r.workerCount,
	}
}

// QueueLength returns the current queue length.
func (r *Runner) QueueLength() int {
	return len(r.queue)
}

// IsRunning returns true if the runner is active.
func (r *Runner) IsRunning() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
