package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// Publisher enqueues dispatch jobs so the chat reply never waits on the calendar,
// the database or the mail provider.
type Publisher struct {
	queue  Queue
	jobs   JobStore
	now    func() time.Time
	logger *logging.Logger
}

func NewPublisher(queue Queue, jobs JobStore, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, now: time.Now, logger: logger}
}

// Publish records a pending job and enqueues it. It returns the job id.
func (p *Publisher) Publish(ctx context.Context, data tickets.TicketData, sessionKey string) (string, error) {
	job := Job{
		ID:         uuid.NewString(),
		SessionKey: sessionKey,
		Ticket:     data,
		EnqueuedAt: p.now().UTC(),
	}

	if p.jobs != nil {
		record := &JobRecord{JobID: job.ID, SessionKey: sessionKey, TicketType: data.Type}
		if err := p.jobs.PutPending(ctx, record); err != nil {
			p.logger.Warn("failed to record pending dispatch job", "error", err, "job_id", job.ID)
		}
	}

	if err := p.queue.Send(ctx, job); err != nil {
		return "", fmt.Errorf("dispatch: failed to enqueue job: %w", err)
	}

	p.logger.Debug("dispatch job enqueued", "job_id", job.ID, "ticket_type", data.Type)
	return job.ID, nil
}
