package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"relnotify/internal/metrics"
	"relnotify/internal/models"
)

// CycleOutcome tells the polling loop how soon to wake up again.
type CycleOutcome int

const (
	// CycleIdle means no runnable job was found; back off to the idle
	// interval.
	CycleIdle CycleOutcome = iota

	// CycleInFlight means a job advanced one batch and still has work;
	// the next wake waits out the inter-batch delay.
	CycleInFlight

	// CycleActive covers everything else (job completed, job paused,
	// cycle error, skipped cycle); poll again soon.
	CycleActive
)

// Scheduler is the single recurring poller that drives bulk jobs forward,
// one batch of one job per cycle. All scheduling state lives on this one
// instance: the timer, the adaptive interval, and the single-flight guard
// that keeps cycles from overlapping.
type Scheduler struct {
	jobs      JobStore
	notes     ReleaseNoteSource
	sender    *Sender
	lifecycle *Lifecycle
	logger    *zap.Logger

	activeInterval time.Duration
	idleInterval   time.Duration
	batchDelay     time.Duration

	running  atomic.Bool
	kick     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(
	jobs JobStore,
	notes ReleaseNoteSource,
	sender *Sender,
	lifecycle *Lifecycle,
	activeInterval time.Duration,
	idleInterval time.Duration,
	batchDelay time.Duration,
	logger *zap.Logger,
) *Scheduler {

	return &Scheduler{
		jobs:           jobs,
		notes:          notes,
		sender:         sender,
		lifecycle:      lifecycle,
		logger:         logger,
		activeInterval: activeInterval,
		idleInterval:   idleInterval,
		batchDelay:     batchDelay,
		kick:           make(chan struct{}, 1),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	s.logger.Info("scheduler started",
		zap.Duration("active_interval", s.activeInterval),
		zap.Duration("idle_interval", s.idleInterval),
	)
}

// Stop ends the polling loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info("scheduler stopped")
}

// Kick wakes the loop without waiting for the timer. Used after job
// creation so processing starts immediately.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.activeInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-timer.C:
		case <-s.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		outcome := s.RunCycle(ctx)

		var next time.Duration
		switch outcome {
		case CycleIdle:
			next = s.idleInterval
		case CycleInFlight:
			next = s.batchDelay
		default:
			next = s.activeInterval
		}
		timer.Reset(next)
	}
}

// RunCycle executes one poll cycle. At most one cycle runs at a time: a
// second caller finds the guard held and returns without touching any job.
func (s *Scheduler) RunCycle(ctx context.Context) CycleOutcome {
	if !s.running.CompareAndSwap(false, true) {
		metrics.PollCyclesSkipped.Inc()
		return CycleActive
	}
	defer s.running.Store(false)

	var outcome CycleOutcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in poll cycle recovered", zap.Any("panic", r))
				outcome = CycleActive
			}
		}()
		outcome = s.cycle(ctx)
	}()

	return outcome
}

func (s *Scheduler) cycle(ctx context.Context) CycleOutcome {

	now := time.Now()

	// ----------------------------
	// Find Runnable Job
	// ----------------------------
	var job *models.EmailJob
	err := backoff.Retry(func() error {
		var qErr error
		job, qErr = s.jobs.NextRunnable(ctx, now)
		return qErr
	}, backoff.WithContext(storeBackOff(), ctx))

	if err != nil {
		s.logger.Error("runnable job query failed", zap.Error(err))
		return CycleActive
	}
	if job == nil {
		return CycleIdle
	}

	// ----------------------------
	// Claim
	// ----------------------------
	claimed, err := s.jobs.ClaimJob(ctx, job.ID, now)
	if err != nil {
		s.logger.Error("job claim failed", zap.Int64("job_id", job.ID), zap.Error(err))
		return CycleActive
	}
	if claimed == nil {
		// lost eligibility between the query and the claim
		return CycleActive
	}

	note, err := s.notes.GetReleaseNote(ctx, claimed.ReleaseNoteID)
	if err != nil {
		s.logger.Error("release note query failed",
			zap.Int64("job_id", claimed.ID),
			zap.Error(err),
		)
		return CycleActive
	}
	if note == nil {
		if perr := s.lifecycle.Pause(ctx, claimed, ErrReleaseNoteNotFound); perr != nil {
			s.logger.Error("job pause failed", zap.Int64("job_id", claimed.ID), zap.Error(perr))
		}
		return CycleActive
	}

	// ----------------------------
	// Send One Batch
	// ----------------------------
	res, sendErr := s.sender.SendBatch(ctx, claimed, note)
	if sendErr != nil {
		if errors.Is(sendErr, context.Canceled) {
			// shutdown mid-batch: the job stays processing and is
			// re-sent from the same offset on the next start
			s.logger.Info("batch interrupted by shutdown", zap.Int64("job_id", claimed.ID))
			return CycleActive
		}

		s.logger.Error("batch aborted by infrastructure error",
			zap.Int64("job_id", claimed.ID),
			zap.Error(sendErr),
		)
		if perr := s.lifecycle.Pause(ctx, claimed, sendErr); perr != nil {
			s.logger.Error("job pause failed", zap.Int64("job_id", claimed.ID), zap.Error(perr))
		}
		return CycleActive
	}

	// ----------------------------
	// Checkpoint
	// ----------------------------
	completed, err := s.lifecycle.Advance(ctx, claimed, res)
	if err != nil {
		s.logger.Error("batch checkpoint failed", zap.Int64("job_id", claimed.ID), zap.Error(err))
		return CycleActive
	}

	s.logger.Info("batch processed",
		zap.Int64("job_id", claimed.ID),
		zap.Int("batch_sent", res.Sent),
		zap.Int("batch_failed", res.Failed),
		zap.Bool("completed", completed),
	)

	if completed {
		return CycleActive
	}
	return CycleInFlight
}

// storeBackOff is the short retry window for transient store errors inside
// a poll cycle; anything that outlasts it surfaces as a cycle error and the
// loop simply tries again on the next tick.
func storeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}
