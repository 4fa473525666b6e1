package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"relnotify/internal/metrics"
	"relnotify/internal/models"
)

var (
	ErrReleaseNoteNotFound = errors.New("release note not found")
	ErrNoSubscribers       = errors.New("no subscribers found")
)

// JobStore is the durable checkpoint for bulk jobs. UpdateJob writes the
// complete mutable state; counters are never incremented at the storage
// layer.
type JobStore interface {
	CreateJob(ctx context.Context, releaseNoteID int64, totalEmails int) (*models.EmailJob, error)
	GetJob(ctx context.Context, id int64) (*models.EmailJob, error)
	NextRunnable(ctx context.Context, now time.Time) (*models.EmailJob, error)
	ClaimJob(ctx context.Context, id int64, now time.Time) (*models.EmailJob, error)
	UpdateJob(ctx context.Context, job *models.EmailJob) error
}

type HistoryStore interface {
	InsertHistory(ctx context.Context, rec *models.HistoryRecord) error
	PruneHistory(ctx context.Context, keep int) error
}

type ReleaseNoteSource interface {
	GetReleaseNote(ctx context.Context, id int64) (*models.ReleaseNote, error)
}

// Lifecycle owns the job state machine: creation, checkpointing after each
// batch, pause with backoff on infrastructure errors, and completion with
// the history record.
type Lifecycle struct {
	jobs        JobStore
	history     HistoryStore
	notes       ReleaseNoteSource
	subscribers SubscriberSource

	batchSize      int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	historyLimit   int

	logger *zap.Logger
	now    func() time.Time
}

func NewLifecycle(
	jobs JobStore,
	history HistoryStore,
	notes ReleaseNoteSource,
	subscribers SubscriberSource,
	batchSize int,
	retryBaseDelay time.Duration,
	retryMaxDelay time.Duration,
	historyLimit int,
	logger *zap.Logger,
) *Lifecycle {

	return &Lifecycle{
		jobs:           jobs,
		history:        history,
		notes:          notes,
		subscribers:    subscribers,
		batchSize:      batchSize,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		historyLimit:   historyLimit,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateJob validates and creates a pending bulk job. The subscriber count
// is snapshotted as the job total; a zero count is rejected here, before
// any row exists.
func (l *Lifecycle) CreateJob(ctx context.Context, releaseNoteID int64) (*models.EmailJob, error) {

	note, err := l.notes.GetReleaseNote(ctx, releaseNoteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrReleaseNoteNotFound
	}

	total, err := l.subscribers.CountSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoSubscribers
	}

	job, err := l.jobs.CreateJob(ctx, releaseNoteID, total)
	if err != nil {
		return nil, err
	}

	l.logger.Info("email job created",
		zap.Int64("job_id", job.ID),
		zap.Int64("release_note_id", releaseNoteID),
		zap.Int("total_emails", total),
	)

	return job, nil
}

// Advance checkpoints a normally completed batch. The offset advances by the
// configured batch size only now, after the outcomes are known. When the
// counters reach the job total the job transitions to completed, exactly
// once, and the history record is written and pruned.
//
// An empty batch window means the subscriber list shrank below the current
// offset; the job is finalized with the counters it has instead of chasing
// addresses that no longer exist.
func (l *Lifecycle) Advance(ctx context.Context, job *models.EmailJob, res BatchResult) (bool, error) {

	now := l.now()

	if res.Attempted > 0 {
		job.EmailsSent += res.Sent
		job.EmailsFailed += res.Failed
		job.CurrentBatchOffset += l.batchSize
	}

	done := res.Attempted == 0 || job.EmailsSent+job.EmailsFailed >= job.TotalEmails

	if done {
		job.Status = models.JobCompleted
		job.CompletedAt = &now
		job.NextRetryAt = nil
	} else {
		job.Status = models.JobProcessing
	}

	if err := l.jobs.UpdateJob(ctx, job); err != nil {
		return false, fmt.Errorf("job checkpoint failed: %w", err)
	}
	metrics.BatchesProcessed.Inc()

	if !done {
		return false, nil
	}

	metrics.JobsCompleted.Inc()

	status := models.HistorySent
	errorMessage := ""
	switch {
	case job.EmailsSent == 0 && job.EmailsFailed > 0:
		status = models.HistoryFailed
	case job.EmailsFailed > 0:
		status = models.HistoryPartial
	}
	if job.EmailsFailed > 0 {
		errorMessage = fmt.Sprintf("%d of %d emails failed to send", job.EmailsFailed, job.TotalEmails)
	}

	rec := &models.HistoryRecord{
		ReleaseNoteID: job.ReleaseNoteID,
		EmailCount:    job.TotalEmails,
		Status:        status,
		ErrorMessage:  errorMessage,
		Kind:          models.HistoryBulk,
		SentAt:        now,
	}

	if err := l.history.InsertHistory(ctx, rec); err != nil {
		return true, fmt.Errorf("history insert failed: %w", err)
	}
	if err := l.history.PruneHistory(ctx, l.historyLimit); err != nil {
		return true, fmt.Errorf("history prune failed: %w", err)
	}

	l.logger.Info("email job completed",
		zap.Int64("job_id", job.ID),
		zap.Int("emails_sent", job.EmailsSent),
		zap.Int("emails_failed", job.EmailsFailed),
	)

	return true, nil
}

// Pause parks the job after an infrastructure error. The batch that failed
// is not checkpointed: offset and counters stay where they were, so the next
// run re-sends the same window (at-least-once).
func (l *Lifecycle) Pause(ctx context.Context, job *models.EmailJob, cause error) error {

	job.Status = models.JobPaused
	job.RetryCount++
	job.ErrorMessage = cause.Error()

	next := l.now().Add(l.pauseDelay(job.RetryCount))
	job.NextRetryAt = &next

	if err := l.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("job pause update failed: %w", err)
	}
	metrics.JobPauses.Inc()

	l.logger.Error("email job paused",
		zap.Int64("job_id", job.ID),
		zap.Int("retry_count", job.RetryCount),
		zap.Time("next_retry_at", next),
		zap.Error(cause),
	)

	return nil
}

// pauseDelay is 2^retryCount * base, capped at the configured ceiling.
func (l *Lifecycle) pauseDelay(retryCount int) time.Duration {
	if retryCount >= 30 {
		return l.retryMaxDelay
	}
	delay := l.retryBaseDelay * (1 << retryCount)
	if delay > l.retryMaxDelay || delay <= 0 {
		delay = l.retryMaxDelay
	}
	return delay
}

// RecordIndividual writes a history row for a single direct send (the
// operator test-send path), outside any job.
func (l *Lifecycle) RecordIndividual(ctx context.Context, releaseNoteID int64, sendErr error) error {

	rec := &models.HistoryRecord{
		ReleaseNoteID: releaseNoteID,
		EmailCount:    1,
		Status:        models.HistorySent,
		Kind:          models.HistoryIndividual,
		SentAt:        l.now(),
	}
	if sendErr != nil {
		rec.Status = models.HistoryFailed
		rec.ErrorMessage = sendErr.Error()
	}

	if err := l.history.InsertHistory(ctx, rec); err != nil {
		return err
	}
	return l.history.PruneHistory(ctx, l.historyLimit)
}
