package jobs

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// MemoryPath keeps the jobs table in memory for the life of the process.
const MemoryPath = ":memory:"

// Store persists jobs in SQLite.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// OpenStore opens or creates the jobs database at dbPath. MemoryPath (or an
// empty path) uses a private in-memory database.
func OpenStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	memory := dbPath == MemoryPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create jobs directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open jobs database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{conn: conn, logger: logger, dbPath: dbPath}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize jobs schema: %w", err)
	}
	logger.Debug("Opened jobs database", "path", dbPath)
	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			scope TEXT,
			status TEXT NOT NULL DEFAULT 'queued',
			progress INTEGER DEFAULT 0,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error TEXT,
			error_code TEXT,
			result TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

const jobColumns = `id, type, scope, status, progress, created_at, started_at, completed_at, error, error_code, result`

// CreateJob inserts a new job.
func (s *Store) CreateJob(job *Job) error {
	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.conn.Exec(query,
		job.ID,
		job.Type,
		nullString(job.Scope),
		job.Status,
		job.Progress,
		job.CreatedAt.UTC().Format(timeFormat),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		nullString(job.Error),
		nullString(job.ErrorCode),
		nullString(job.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug("Created job", "jobId", job.ID, "type", job.Type)
	return nil
}

// GetJob retrieves a job by ID. A missing job returns (nil, nil).
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// UpdateJob writes a job's mutable fields.
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE jobs SET
			status = ?,
			progress = ?,
			started_at = ?,
			completed_at = ?,
			error = ?,
			error_code = ?,
			result = ?
		WHERE id = ?
	`
	result, err := s.conn.Exec(query,
		job.Status,
		job.Progress,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		nullString(job.Error),
		nullString(job.ErrorCode),
		nullString(job.Result),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	return nil
}

// UpdateProgress writes progress for a running job only.
func (s *Store) UpdateProgress(id string, progress int) error {
	_, err := s.conn.Exec(`UPDATE jobs SET progress = ? WHERE id = ? AND status = 'running'`, progress, id)
	return err
}

// ClaimJob moves a queued job to running. It reports false when the job was
// already claimed, cancelled or removed.
func (s *Store) ClaimJob(job *Job) (bool, error) {
	now := time.Now().UTC()
	result, err := s.conn.Exec(
		`UPDATE jobs SET status = 'running', started_at = ? WHERE id = ? AND status = 'queued'`,
		now.Format(timeFormat), job.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}
	job.Status = JobRunning
	job.StartedAt = &now
	return true, nil
}

// CancelJob marks a queued or running job cancelled. It reports false when
// the job was already in a terminal state.
func (s *Store) CancelJob(id string) (bool, error) {
	result, err := s.conn.Exec(
		`UPDATE jobs SET status = 'cancelled', completed_at = ? WHERE id = ? AND status IN ('queued', 'running')`,
		time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListJobs retrieves jobs matching the given options, newest first.
func (s *Store) ListJobs(opts ListJobsOptions) (*ListJobsResponse, error) {
	var conditions []string
	var args []interface{}

	if len(opts.Status) > 0 {
		placeholders := make([]string, len(opts.Status))
		for i, status := range opts.Status {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(opts.Type) > 0 {
		placeholders := make([]string, len(opts.Type))
		for i, t := range opts.Type {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM jobs "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, jobColumns, whereClause)
	args = append(args, limit, opts.Offset)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return &ListJobsResponse{Jobs: jobs, TotalCount: totalCount}, nil
}

// GetPendingJobs retrieves all queued jobs, oldest first.
func (s *Store) GetPendingJobs() ([]*Job, error) {
	rows, err := s.conn.Query(`SELECT ` + jobColumns + ` FROM jobs WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FailInterrupted marks jobs left running by a previous process as failed.
func (s *Store) FailInterrupted() (int64, error) {
	result, err := s.conn.Exec(
		`UPDATE jobs SET status = 'failed', error = 'interrupted by restart', completed_at = ? WHERE status = 'running'`,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset interrupted jobs: %w", err)
	}
	return result.RowsAffected()
}

// CleanupOldJobs removes finished jobs older than retention.
func (s *Store) CleanupOldJobs(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeFormat)

	result, err := s.conn.Exec(`
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old jobs: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var scope, startedAt, completedAt, errMsg, errCode, result sql.NullString
	var createdAt string

	err := row.Scan(
		&job.ID,
		&job.Type,
		&scope,
		&job.Status,
		&job.Progress,
		&createdAt,
		&startedAt,
		&completedAt,
		&errMsg,
		&errCode,
		&result,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Scope = scope.String
	job.Error = errMsg.String
	job.ErrorCode = errCode.String
	job.Result = result.String

	if t, err := time.Parse(timeFormat, createdAt); err == nil {
		job.CreatedAt = t
	}
	job.StartedAt = parseNullTime(startedAt)
	job.CompletedAt = parseNullTime(completedAt)
	return &job, nil
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}
