package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"relnotify/internal/email"
	"relnotify/internal/metrics"
	"relnotify/internal/models"
)

// SubscriberSource pages through the live subscriber list. The list is not
// snapshotted per job: each batch re-queries by offset, so churn during a
// long-running job can skip or duplicate recipients across batch boundaries.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context, offset, limit int) ([]string, error)
	CountSubscribers(ctx context.Context) (int, error)
}

type FailedRecipient struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BatchResult is the outcome of one batch window. Attempted is how many
// addresses the window contained; zero means the offset ran past the end of
// the subscriber list.
type BatchResult struct {
	Sent             int
	Failed           int
	Attempted        int
	FailedRecipients []FailedRecipient
}

// Sender pushes one bounded batch of a job through the transport,
// sequentially and paced. Persistence of the outcome belongs to Lifecycle.
type Sender struct {
	subscribers SubscriberSource
	transport   email.Transport
	renderer    *email.Renderer
	classifier  *email.Classifier
	limiter     *rate.Limiter
	batchSize   int
	fromName    string
	fromAddress string
	logger      *zap.Logger
}

func NewSender(
	subscribers SubscriberSource,
	transport email.Transport,
	renderer *email.Renderer,
	classifier *email.Classifier,
	limiter *rate.Limiter,
	batchSize int,
	fromName string,
	fromAddress string,
	logger *zap.Logger,
) *Sender {

	return &Sender{
		subscribers: subscribers,
		transport:   transport,
		renderer:    renderer,
		classifier:  classifier,
		limiter:     limiter,
		batchSize:   batchSize,
		fromName:    fromName,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendBatch sends the batch window starting at job.CurrentBatchOffset.
// Sends are strictly sequential; the limiter spaces them out so the relay
// never sees a burst. Recipient-level failures are counted and the loop
// continues; any other failure aborts the batch immediately with no
// progress recorded, so the next run re-sends the same window.
func (s *Sender) SendBatch(ctx context.Context, job *models.EmailJob, note *models.ReleaseNote) (BatchResult, error) {

	var res BatchResult

	batch, err := s.subscribers.ListSubscribers(ctx, job.CurrentBatchOffset, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("subscriber query failed: %w", err)
	}
	res.Attempted = len(batch)

	for _, addr := range batch {

		// ----------------------------
		// Pacing
		// ----------------------------
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}

		rendered, err := s.renderer.Render(note, addr)
		if err != nil {
			return res, err
		}

		sendErr := s.transport.Send(&email.Message{
			FromName:    s.fromName,
			FromAddress: s.fromAddress,
			To:          addr,
			Subject:     rendered.Subject,
			Text:        rendered.Text,
			HTML:        rendered.HTML,
		})

		if sendErr == nil {
			res.Sent++
			metrics.EmailsSent.Inc()
			continue
		}

		if s.classifier.Classify(sendErr) == email.FailureRecipient {
			res.Failed++
			res.FailedRecipients = append(res.FailedRecipients, FailedRecipient{
				Email: addr,
				Error: sendErr.Error(),
			})
			metrics.EmailFailures.Inc()

			s.logger.Warn("recipient rejected",
				zap.Int64("job_id", job.ID),
				zap.String("to", addr),
				zap.Error(sendErr),
			)
			continue
		}

		return res, sendErr
	}

	return res, nil
}
