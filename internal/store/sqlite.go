package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the same export-job schema as PostgresStore, backed by
// a local file, for havenctl's offline single-user workflows where
// standing up Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a local export-job database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers

	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the export_jobs table if it does not already exist.
func (s *SQLiteStore) Migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS export_jobs (
			id            TEXT PRIMARY KEY,
			requester_key TEXT NOT NULL,
			scope         TEXT NOT NULL,
			scope_target  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			blob_path     TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			completed_at  DATETIME
		)`)
	return err
}

// CreateJob inserts a new pending export job.
func (s *SQLiteStore) CreateJob(requesterKey, scope, scopeTarget string) (*ExportJob, error) {
	job := &ExportJob{
		ID:           uuid.New(),
		RequesterKey: requesterKey,
		Scope:        scope,
		ScopeTarget:  scopeTarget,
		Status:       JobPending,
		CreatedAt:    time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO export_jobs (id, requester_key, scope, scope_target, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.RequesterKey, job.Scope, job.ScopeTarget, string(job.Status), job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus records a job's terminal or intermediate state.
func (s *SQLiteStore) UpdateJobStatus(id uuid.UUID, status JobStatus, blobPath, errMsg string) error {
	var completedAt interface{}
	if status == JobDone || status == JobFailed {
		completedAt = time.Now()
	}

	_, err := s.db.Exec(`
		UPDATE export_jobs
		SET status = ?, blob_path = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		string(status), blobPath, errMsg, completedAt, id.String())
	if err != nil {
		return fmt.Errorf("update export job %s: %w", id, err)
	}
	return nil
}

// GetJob retrieves an export job by ID.
func (s *SQLiteStore) GetJob(id uuid.UUID) (*ExportJob, error) {
	job := &ExportJob{}
	var idStr, status string
	err := s.db.QueryRow(`
		SELECT id, requester_key, scope, scope_target, status, blob_path, error_message, created_at, completed_at
		FROM export_jobs WHERE id = ?`, id.String(),
	).Scan(&idStr, &job.RequesterKey, &job.Scope, &job.ScopeTarget, &status,
		&job.BlobPath, &job.ErrorMessage, &job.CreatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	return job, nil
}
