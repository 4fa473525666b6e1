package models

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobPaused     JobStatus = "paused"
	JobCompleted  JobStatus = "completed"
)

// EmailJob tracks one bulk announcement send. TotalEmails is snapshotted at
// creation; the recipient list itself is re-queried by offset on every batch.
type EmailJob struct {
	ID                 int64     `json:"id"`
	ReleaseNoteID      int64     `json:"release_note_id"`
	TotalEmails        int       `json:"total_emails"`
	EmailsSent         int       `json:"emails_sent"`
	EmailsFailed       int       `json:"emails_failed"`
	CurrentBatchOffset int       `json:"current_batch_offset"`
	Status             JobStatus `json:"status"`

	RetryCount   int        `json:"retry_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Remaining reports how many recipients have not been accounted for yet.
func (j *EmailJob) Remaining() int {
	return j.TotalEmails - j.EmailsSent - j.EmailsFailed
}

type ReleaseType string

const (
	ReleaseMajor ReleaseType = "major"
	ReleaseMinor ReleaseType = "minor"
	ReleasePatch ReleaseType = "patch"
)

type Change struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ReleaseNote struct {
	ID          int64       `json:"id"`
	Version     string      `json:"version"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        ReleaseType `json:"type"`
	Tags        []string    `json:"tags"`
	Changes     []Change    `json:"changes"`
	CreatedAt   time.Time   `json:"created_at"`
}

type HistoryStatus string

const (
	HistorySent    HistoryStatus = "sent"
	HistoryFailed  HistoryStatus = "failed"
	HistoryPartial HistoryStatus = "partial"
)

type HistoryKind string

const (
	HistoryBulk       HistoryKind = "bulk"
	HistoryIndividual HistoryKind = "individual"
)

// HistoryRecord is the write-once summary of a finished send. Only the most
// recent N records are retained; older ones are pruned on each insert.
type HistoryRecord struct {
	ID            int64         `json:"id"`
	ReleaseNoteID int64         `json:"release_note_id"`
	EmailCount    int           `json:"email_count"`
	Status        HistoryStatus `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Kind          HistoryKind   `json:"kind"`
	SentAt        time.Time     `json:"sent_at"`
}

type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
