package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"repochat/internal/slogutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(MemoryPath, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateGetUpdate(t *testing.T) {
	store := newTestStore(t)

	job, _ := NewJob(JobTypeIngestRepository, IngestScope{Source: "./repo"})
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	got, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetJob() returned nil")
	}
	if got.Scope != job.Scope || got.Status != JobQueued {
		t.Errorf("GetJob() = %+v", got)
	}
	if !got.CreatedAt.Equal(job.CreatedAt.Truncate(time.Microsecond)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, job.CreatedAt)
	}

	job.MarkStarted()
	job.SetProgress(40)
	if err := store.UpdateJob(job); err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}
	if err := job.MarkCompleted(IngestResult{SessionID: "3"}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateJob(job); err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}

	got, _ = store.GetJob(job.ID)
	if got.Status != JobCompleted || got.Progress != 100 || got.StartedAt == nil || got.CompletedAt == nil {
		t.Errorf("after completion = %+v", got)
	}
	result, _ := ParseIngestResult(got.Result)
	if result == nil || result.SessionID != "3" {
		t.Errorf("Result = %q", got.Result)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	job, err := store.GetJob("missing")
	if err != nil || job != nil {
		t.Errorf("GetJob(missing) = %v, %v; want nil, nil", job, err)
	}
	if err := store.UpdateJob(&Job{ID: "missing"}); err == nil {
		t.Error("UpdateJob(missing) should fail")
	}
}

func TestStore_ClaimOnce(t *testing.T) {
	store := newTestStore(t)
	job, _ := NewJob(JobTypeIngestRepository, nil)
	_ = store.CreateJob(job)

	ok, err := store.ClaimJob(job)
	if err != nil || !ok {
		t.Fatalf("first ClaimJob() = %v, %v", ok, err)
	}
	if job.Status != JobRunning || job.StartedAt == nil {
		t.Errorf("claimed job = %+v", job)
	}
	again := *job
	again.Status = JobQueued
	if ok, _ := store.ClaimJob(&again); ok {
		t.Error("second ClaimJob() should fail")
	}
}

func TestStore_CancelJob(t *testing.T) {
	store := newTestStore(t)
	job, _ := NewJob(JobTypeIngestRepository, nil)
	_ = store.CreateJob(job)

	if ok, err := store.CancelJob(job.ID); err != nil || !ok {
		t.Fatalf("CancelJob() = %v, %v", ok, err)
	}
	if ok, _ := store.CancelJob(job.ID); ok {
		t.Error("cancelling a cancelled job should report false")
	}
	if ok, _ := store.ClaimJob(job); ok {
		t.Error("a cancelled job must not be claimable")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		job, _ := NewJob(JobTypeIngestRepository, nil)
		job.CreatedAt = job.CreatedAt.Add(time.Duration(i) * time.Second)
		if i%2 == 0 {
			job.MarkFailed(nil, "")
		}
		if err := store.CreateJob(job); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListJobs(ListJobsOptions{})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if all.TotalCount != 5 || len(all.Jobs) != 5 {
		t.Errorf("ListJobs() = %d/%d, want 5/5", len(all.Jobs), all.TotalCount)
	}
	for i := 1; i < len(all.Jobs); i++ {
		if all.Jobs[i].CreatedAt.After(all.Jobs[i-1].CreatedAt) {
			t.Error("jobs should be listed newest first")
		}
	}

	failed, _ := store.ListJobs(ListJobsOptions{Status: []JobStatus{JobFailed}, Limit: 2})
	if failed.TotalCount != 3 || len(failed.Jobs) != 2 {
		t.Errorf("failed = %d/%d, want 2/3", len(failed.Jobs), failed.TotalCount)
	}

	page, _ := store.ListJobs(ListJobsOptions{Offset: 4})
	if len(page.Jobs) != 1 {
		t.Errorf("offset page has %d jobs, want 1", len(page.Jobs))
	}
}

func TestStore_CleanupOldJobs(t *testing.T) {
	store := newTestStore(t)

	old, _ := NewJob(JobTypeIngestRepository, nil)
	old.MarkFailed(nil, "")
	past := time.Now().UTC().Add(-48 * time.Hour)
	old.CompletedAt = &past
	_ = store.CreateJob(old)

	recent, _ := NewJob(JobTypeIngestRepository, nil)
	recent.MarkFailed(nil, "")
	_ = store.CreateJob(recent)

	queued, _ := NewJob(JobTypeIngestRepository, nil)
	_ = store.CreateJob(queued)

	n, err := store.CleanupOldJobs(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldJobs() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupOldJobs() removed %d, want 1", n)
	}
	if j, _ := store.GetJob(old.ID); j != nil {
		t.Error("old job should be removed")
	}
}

func TestStore_FileBackedReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "jobs.db")
	logger := slogutil.NewDiscardLogger()

	store, err := OpenStore(path, logger)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	job, _ := NewJob(JobTypeIngestRepository, nil)
	_ = store.CreateJob(job)
	_, _ = store.ClaimJob(job)
	_ = store.Close()

	store, err = OpenStore(path, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	if n, _ := store.FailInterrupted(); n != 1 {
		t.Errorf("FailInterrupted() = %d, want 1", n)
	}
	got, _ := store.GetJob(job.ID)
	if got.Status != JobFailed {
		t.Errorf("Status = %v, want failed", got.Status)
	}
}
