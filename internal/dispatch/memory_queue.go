package dispatch

import (
	"context"
	"time"
)

const defaultMemoryQueueBuffer = 128

// MemoryQueue hands jobs to in-process workers over a buffered channel. Queued jobs do
// not survive a restart, and Ack is a no-op because a received job has already left
// the channel.
type MemoryQueue struct {
	jobs chan Job
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = defaultMemoryQueueBuffer
	}
	return &MemoryQueue{jobs: make(chan Job, buffer)}
}

// Send blocks while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errJobWithoutID
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	var expired <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}

	var first Job
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, nil
	case first = <-q.jobs:
	}

	out := []Delivery{{Job: first, Receipt: first.ID}}
	for len(out) < max {
		select {
		case job := <-q.jobs:
			out = append(out, Delivery{Job: job, Receipt: job.ID})
		default:
			return out, nil
		}
	}
	return out, nil
}

func (q *MemoryQueue) Ack(context.Context, Delivery) error { return nil }

// Pending reports jobs sent but not yet received.
func (q *MemoryQueue) Pending() int {
	return len(q.jobs)
}
