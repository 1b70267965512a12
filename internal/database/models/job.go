package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobPerformerSync JobKind = "performer_sync"
	JobStudioSync    JobKind = "studio_sync"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a deferred sync task. Jobs are persisted so a pending retry ladder
// survives a daemon restart.
type Job struct {
	ID          string    `json:"id" db:"id"`
	Kind        JobKind   `json:"kind" db:"kind"`
	SubjectID   string    `json:"subject_id" db:"subject_id"`
	Payload     string    `json:"payload" db:"payload"`
	Status      JobStatus `json:"status" db:"status"`
	Attempt     int       `json:"attempt" db:"attempt"`
	MaxAttempts int       `json:"max_attempts" db:"max_attempts"`
	RunAt       time.Time `json:"run_at" db:"run_at"`
	LastError   *string   `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create enqueues a job to run at runAt.
func (r *JobRepository) Create(kind JobKind, subjectID, payload string, runAt time.Time, maxAttempts int) (*Job, error) {
	job := &Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		SubjectID:   subjectID,
		Payload:     payload,
		Status:      JobPending,
		MaxAttempts: maxAttempts,
		RunAt:       runAt,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	query := `
        INSERT INTO jobs (id, kind, subject_id, payload, status, attempt, max_attempts, run_at)
        VALUES (?, ?, ?, ?, ?, 0, ?, ?)
    `
	_, err := r.db.Exec(query, job.ID, job.Kind, job.SubjectID, job.Payload, job.Status, job.MaxAttempts, job.RunAt.UTC())
	if err != nil {
		return nil, err
	}
	return job, nil
}

const jobColumns = `id, kind, subject_id, payload, status, attempt, max_attempts, run_at, last_error, created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.SubjectID, &j.Payload, &j.Status, &j.Attempt,
		&j.MaxAttempts, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Due returns pending jobs whose run time has passed.
func (r *JobRepository) Due(now time.Time) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? AND run_at <= ? ORDER BY run_at`
	rows, err := r.db.Query(query, JobPending, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// MarkRunning claims a pending job. It reports false when the job was
// already claimed, so overlapping ticks do not run it twice.
func (r *JobRepository) MarkRunning(id string) (bool, error) {
	res, err := r.db.Exec(`UPDATE jobs SET status = ?, attempt = attempt + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		JobRunning, id, JobPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reschedule puts a running job back in the pending queue for a later
// attempt. The payload can change so multi-phase jobs can advance.
func (r *JobRepository) Reschedule(id, payload string, runAt time.Time, lastError string) error {
	_, err := r.db.Exec(`
        UPDATE jobs SET status = ?, payload = ?, run_at = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, JobPending, payload, runAt.UTC(), nullable(lastError), id)
	return err
}

func (r *JobRepository) Finish(id string) error {
	_, err := r.db.Exec(`UPDATE jobs SET status = ?, last_error = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		JobDone, id)
	return err
}

func (r *JobRepository) Fail(id, lastError string) error {
	_, err := r.db.Exec(`UPDATE jobs SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		JobFailed, nullable(lastError), id)
	return err
}

// ResetRunning returns jobs stuck in running (a crash mid-attempt) to
// pending. Called once at startup.
func (r *JobRepository) ResetRunning() (int64, error) {
	res, err := r.db.Exec(`UPDATE jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		JobPending, JobRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *JobRepository) CountByStatus() (map[JobStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Recent returns the latest n jobs, newest first.
func (r *JobRepository) Recent(n int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.Query(query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
