package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/models"
)

// DefaultClaimLease covers a worst-case batch: every job in the batch timing
// out its executor call, spread over the worker pool.
const DefaultClaimLease = 10 * time.Minute

// JobRepository handles scheduled job database operations
type JobRepository struct {
	db    *sql.DB
	lease time.Duration
}

// NewJobRepository creates a new job repository with the default claim lease
func NewJobRepository(db *sql.DB) *JobRepository {
	return NewJobRepositoryWithLease(db, DefaultClaimLease)
}

// NewJobRepositoryWithLease creates a job repository whose GetDueJobs claims
// hold for the given lease. Size it above batch size / workers times the
// slowest executor timeout, or a second dispatcher will re-claim jobs that
// are still executing and deliver them twice.
func NewJobRepositoryWithLease(db *sql.DB, lease time.Duration) *JobRepository {
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	return &JobRepository{db: db, lease: lease}
}

const jobColumns = `id, business_id, workflow_id, action_index, action_kind, action, context,
	due_at, status, attempts, last_error, created_at, updated_at, dispatched_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.ScheduledJob, error) {
	job := &models.ScheduledJob{}
	err := row.Scan(
		&job.ID, &job.BusinessID, &job.WorkflowID, &job.ActionIndex,
		&job.ActionKind, &job.Action, &job.Context,
		&job.DueAt, &job.Status, &job.Attempts, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt, &job.DispatchedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateJob persists a new scheduled job
func (r *JobRepository) CreateJob(ctx context.Context, job *models.ScheduledJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	query := `
		INSERT INTO scheduled_jobs (
			id, business_id, workflow_id, action_index, action_kind, action, context,
			due_at, status, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(
		ctx, query,
		job.ID, job.BusinessID, job.WorkflowID, job.ActionIndex,
		job.ActionKind, job.Action, job.Context,
		job.DueAt, job.Status, job.Attempts, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}

	return nil
}

// GetByID retrieves a scheduled job by ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scheduled job %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled job: %w", err)
	}

	return job, nil
}

// GetDueJobs claims up to limit pending jobs whose due time has passed.
// SKIP LOCKED lets concurrent dispatcher instances claim disjoint batches.
func (r *JobRepository) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE status = 'pending' AND due_at <= $1
		ORDER BY due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}

	var jobs []*models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Push the claimed rows' due time out by the lease so a crashed dispatcher
	// leaves them pending for retry instead of lost mid-flight. A claim that
	// outlives its lease can be picked up again, so delivery is at-least-once
	// within that window.
	if len(jobs) > 0 {
		ids := make([]uuid.UUID, len(jobs))
		for i, job := range jobs {
			ids[i] = job.ID
		}
		lease := `UPDATE scheduled_jobs SET due_at = $1, updated_at = NOW() WHERE id = ANY($2)`
		if _, err := tx.ExecContext(ctx, lease, now.Add(r.lease), pq.Array(ids)); err != nil {
			return nil, fmt.Errorf("failed to lease due jobs: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return jobs, nil
}

// MarkDispatched transitions a job to dispatched
func (r *JobRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'dispatched', attempts = attempts + 1, last_error = NULL,
		    dispatched_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	return r.transition(ctx, query, id)
}

// MarkFailed transitions a job to failed after retries are exhausted
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'failed', attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return checkTransition(result, id)
}

// MarkCancelled transitions a job to cancelled
func (r *JobRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	return r.transition(ctx, query, id)
}

// Reschedule pushes a pending job's due time out for a retry
func (r *JobRepository) Reschedule(ctx context.Context, id uuid.UUID, attempts int, dueAt time.Time, lastError string) error {
	query := `
		UPDATE scheduled_jobs
		SET attempts = $2, due_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, attempts, dueAt, lastError)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return checkTransition(result, id)
}

// CancelPendingByWorkflow cancels all pending jobs of a workflow. Used when a
// workflow is deactivated or deleted. Returns the number of jobs cancelled.
func (r *JobRepository) CancelPendingByWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	query := `
		UPDATE scheduled_jobs
		SET status = 'cancelled', updated_at = NOW()
		WHERE workflow_id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, workflowID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending jobs: %w", err)
	}

	return result.RowsAffected()
}

// List retrieves jobs for a business, optionally filtered by status,
// newest first
func (r *JobRepository) List(ctx context.Context, businessID uuid.UUID, status models.JobStatus, limit, offset int) ([]*models.ScheduledJob, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE business_id = $1`
	args := []interface{}{businessID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// CountPending returns the number of pending jobs across all businesses,
// for the queue depth gauge.
func (r *JobRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_jobs WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

func (r *JobRepository) transition(ctx context.Context, query string, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return checkTransition(result, id)
}

func checkTransition(result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scheduled job %s not pending: %w", id, engine.ErrNotFound)
	}
	return nil
}
