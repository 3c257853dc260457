package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
)

// Queue moves dispatch jobs from the publisher to the workers.
type Queue interface {
	Send(ctx context.Context, job Job) error
	// Receive returns at most max deliveries. It returns early with none once wait has
	// elapsed; a zero wait blocks until a job arrives or ctx ends.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error)
	// Ack removes a handled delivery so it is not redelivered.
	Ack(ctx context.Context, d Delivery) error
}

// Delivery is one received job. Err is set when the payload could not be decoded,
// in which case only Receipt is meaningful.
type Delivery struct {
	Job     Job
	Receipt string
	Err     error
}

// Job is one queued dispatch.
type Job struct {
	ID         string             `json:"id"`
	SessionKey string             `json:"session_key,omitempty"`
	Ticket     tickets.TicketData `json:"ticket"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
}

var errJobWithoutID = errors.New("dispatch: job without id")

func (j Job) encode() (string, error) {
	if j.ID == "" {
		return "", errJobWithoutID
	}
	body, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("dispatch: encode job %s: %w", j.ID, err)
	}
	return string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("dispatch: decode job: %w", err)
	}
	if job.ID == "" {
		return Job{}, errJobWithoutID
	}
	return job, nil
}
