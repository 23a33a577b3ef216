// Package store persists export job state: who requested a .haven
// archive, what scope it covers, and where the finished artifact landed
// in the blobstore. It mirrors the parent backend's PostgresDB wrapper —
// a thin *sql.DB handle with query methods — generalized to haven's
// export-job schema instead of messages/sessions.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// JobStatus tracks an export job's lifecycle.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ExportJob is one archive-build request.
type ExportJob struct {
	ID           uuid.UUID
	RequesterKey string // base64 Ed25519 identity public key
	Scope        string // "full", "channel", "dm"
	ScopeTarget  string
	Status       JobStatus
	BlobPath     string
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// PostgresStore wraps the export-job database connection.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool sized for a single
// havenserver replica.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Migrate creates the export_jobs table if it does not already exist.
func (p *PostgresStore) Migrate() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS export_jobs (
			id             UUID PRIMARY KEY,
			requester_key  TEXT NOT NULL,
			scope          TEXT NOT NULL,
			scope_target   TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			blob_path      TEXT NOT NULL DEFAULT '',
			error_message  TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at   TIMESTAMPTZ
		)`)
	return err
}

// CreateJob inserts a new export job in the pending state.
func (p *PostgresStore) CreateJob(requesterKey, scope, scopeTarget string) (*ExportJob, error) {
	job := &ExportJob{
		ID:           uuid.New(),
		RequesterKey: requesterKey,
		Scope:        scope,
		ScopeTarget:  scopeTarget,
		Status:       JobPending,
		CreatedAt:    time.Now(),
	}

	_, err := p.db.Exec(`
		INSERT INTO export_jobs (id, requester_key, scope, scope_target, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.RequesterKey, job.Scope, job.ScopeTarget, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus transitions a job to running, failed, or done, and on
// success records the blobstore path of the finished archive.
func (p *PostgresStore) UpdateJobStatus(id uuid.UUID, status JobStatus, blobPath, errMsg string) error {
	var completedAt *time.Time
	if status == JobDone || status == JobFailed {
		now := time.Now()
		completedAt = &now
	}

	_, err := p.db.Exec(`
		UPDATE export_jobs
		SET status = $1, blob_path = $2, error_message = $3, completed_at = $4
		WHERE id = $5`,
		status, blobPath, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("update export job %s: %w", id, err)
	}
	return nil
}

// GetJob retrieves an export job by ID.
func (p *PostgresStore) GetJob(id uuid.UUID) (*ExportJob, error) {
	job := &ExportJob{}
	err := p.db.QueryRow(`
		SELECT id, requester_key, scope, scope_target, status, blob_path, error_message, created_at, completed_at
		FROM export_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.RequesterKey, &job.Scope, &job.ScopeTarget, &job.Status,
		&job.BlobPath, &job.ErrorMessage, &job.CreatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobsForRequester returns every export job a given identity key has
// requested, most recent first.
func (p *PostgresStore) ListJobsForRequester(requesterKey string) ([]*ExportJob, error) {
	rows, err := p.db.Query(`
		SELECT id, requester_key, scope, scope_target, status, blob_path, error_message, created_at, completed_at
		FROM export_jobs WHERE requester_key = $1 ORDER BY created_at DESC`, requesterKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ExportJob
	for rows.Next() {
		job := &ExportJob{}
		if err := rows.Scan(&job.ID, &job.RequesterKey, &job.Scope, &job.ScopeTarget, &job.Status,
			&job.BlobPath, &job.ErrorMessage, &job.CreatedAt, &job.CompletedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
