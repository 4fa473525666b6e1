package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"relnotify/internal/models"
)

const jobColumns = `id, release_note_id, total_emails, emails_sent, emails_failed,
	current_batch_offset, status, retry_count, next_retry_at, error_message,
	started_at, completed_at, created_at`

func scanJob(row pgx.Row) (*models.EmailJob, error) {
	var j models.EmailJob
	err := row.Scan(
		&j.ID,
		&j.ReleaseNoteID,
		&j.TotalEmails,
		&j.EmailsSent,
		&j.EmailsFailed,
		&j.CurrentBatchOffset,
		&j.Status,
		&j.RetryCount,
		&j.NextRetryAt,
		&j.ErrorMessage,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) CreateJob(ctx context.Context, releaseNoteID int64, totalEmails int) (*models.EmailJob, error) {

	row := s.Pool.QueryRow(ctx,
		`INSERT INTO email_jobs (release_note_id, total_emails)
		 VALUES ($1, $2)
		 RETURNING `+jobColumns,
		releaseNoteID,
		totalEmails,
	)

	return scanJob(row)
}

func (s *Store) GetJob(ctx context.Context, id int64) (*models.EmailJob, error) {

	row := s.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM email_jobs WHERE id = $1`,
		id,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListActiveJobs returns jobs that are still moving plus jobs completed in
// the last two minutes, newest first.
func (s *Store) ListActiveJobs(ctx context.Context) ([]*models.EmailJob, error) {

	rows, err := s.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM email_jobs
		 WHERE status IN ('pending', 'processing', 'paused')
		    OR (status = 'completed' AND completed_at > now() - interval '2 minutes')
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.EmailJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextRunnable returns the oldest job eligible for processing: pending or
// processing, or paused with its retry time reached. Returns nil when idle.
func (s *Store) NextRunnable(ctx context.Context, now time.Time) (*models.EmailJob, error) {

	row := s.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM email_jobs
		 WHERE status IN ('pending', 'processing')
		    OR (status = 'paused' AND next_retry_at <= $1)
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		now,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ClaimJob transitions an eligible job to processing. The status condition
// makes the claim safe even if a second poller instance were ever started.
// Returns nil when the job is no longer eligible.
func (s *Store) ClaimJob(ctx context.Context, id int64, now time.Time) (*models.EmailJob, error) {

	row := s.Pool.QueryRow(ctx,
		`UPDATE email_jobs
		 SET status = 'processing',
		     started_at = COALESCE(started_at, $2)
		 WHERE id = $1
		   AND (status IN ('pending', 'processing')
		        OR (status = 'paused' AND next_retry_at <= $2))
		 RETURNING `+jobColumns,
		id,
		now,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// UpdateJob persists the complete mutable state of the job. Callers compute
// the new counter values themselves; there are no increment paths here.
func (s *Store) UpdateJob(ctx context.Context, job *models.EmailJob) error {

	_, err := s.Pool.Exec(ctx,
		`UPDATE email_jobs
		 SET emails_sent = $1,
		     emails_failed = $2,
		     current_batch_offset = $3,
		     status = $4,
		     retry_count = $5,
		     next_retry_at = $6,
		     error_message = $7,
		     started_at = $8,
		     completed_at = $9
		 WHERE id = $10`,
		job.EmailsSent,
		job.EmailsFailed,
		job.CurrentBatchOffset,
		job.Status,
		job.RetryCount,
		job.NextRetryAt,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.ID,
	)

	return err
}
