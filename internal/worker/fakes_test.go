package worker

import (
	"context"
	"sync"
	"time"

	"relnotify/internal/email"
	"relnotify/internal/models"
)

func cloneJob(j *models.EmailJob) *models.EmailJob {
	c := *j
	return &c
}

type fakeJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*models.EmailJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[int64]*models.EmailJob{}}
}

func (f *fakeJobStore) CreateJob(_ context.Context, releaseNoteID int64, totalEmails int) (*models.EmailJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	job := &models.EmailJob{
		ID:            f.nextID,
		ReleaseNoteID: releaseNoteID,
		TotalEmails:   totalEmails,
		Status:        models.JobPending,
		CreatedAt:     time.Now(),
	}
	f.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id int64) (*models.EmailJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

func runnable(j *models.EmailJob, now time.Time) bool {
	switch j.Status {
	case models.JobPending, models.JobProcessing:
		return true
	case models.JobPaused:
		return j.NextRetryAt != nil && !j.NextRetryAt.After(now)
	default:
		return false
	}
}

func (f *fakeJobStore) NextRunnable(_ context.Context, now time.Time) (*models.EmailJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *models.EmailJob
	for _, j := range f.jobs {
		if !runnable(j, now) {
			continue
		}
		if best == nil || j.CreatedAt.Before(best.CreatedAt) ||
			(j.CreatedAt.Equal(best.CreatedAt) && j.ID < best.ID) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneJob(best), nil
}

func (f *fakeJobStore) ClaimJob(_ context.Context, id int64, now time.Time) (*models.EmailJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok || !runnable(job, now) {
		return nil, nil
	}
	job.Status = models.JobProcessing
	if job.StartedAt == nil {
		started := now
		job.StartedAt = &started
	}
	return cloneJob(job), nil
}

func (f *fakeJobStore) UpdateJob(_ context.Context, job *models.EmailJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.jobs[job.ID] = cloneJob(job)
	return nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []*models.HistoryRecord
}

func (f *fakeHistoryStore) InsertHistory(_ context.Context, rec *models.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	rec.ID = f.nextID
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistoryStore) PruneHistory(_ context.Context, keep int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.records) > keep {
		f.records = f.records[len(f.records)-keep:]
	}
	return nil
}

type fakeNoteSource struct {
	notes map[int64]*models.ReleaseNote
}

func (f *fakeNoteSource) GetReleaseNote(_ context.Context, id int64) (*models.ReleaseNote, error) {
	note, ok := f.notes[id]
	if !ok {
		return nil, nil
	}
	return note, nil
}

type fakeSubscribers struct {
	mu     sync.Mutex
	emails []string
	err    error
}

func (f *fakeSubscribers) ListSubscribers(_ context.Context, offset, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.emails) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.emails) {
		end = len(f.emails)
	}
	batch := make([]string, end-offset)
	copy(batch, f.emails[offset:end])
	return batch, nil
}

func (f *fakeSubscribers) CountSubscribers(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	return len(f.emails), nil
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	errFor  map[string]error
	failAll error

	// blockOn, when set, is received from before every send returns;
	// lets tests hold a batch mid-flight.
	blockOn chan struct{}
}

func (f *fakeTransport) Send(m *email.Message) error {
	if f.blockOn != nil {
		<-f.blockOn
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.errFor[m.To]; ok {
		return err
	}
	f.sent = append(f.sent, m.To)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
