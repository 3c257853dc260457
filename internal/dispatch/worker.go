package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	ackTimeoutSeconds   = 5
)

// Recorder receives dispatch results. Implemented by metrics.AssistantMetrics.
type Recorder interface {
	ObserveDispatch(outcome, errorClass string, elapsed time.Duration)
}

// Worker consumes dispatch jobs from the queue and runs them.
type Worker struct {
	runner Runner
	queue  Queue
	jobs   JobStore
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	recorder         Recorder
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithRecorder wires dispatch metrics.
func WithRecorder(recorder Recorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.recorder = recorder
	}
}

func NewWorker(runner Runner, queue Queue, jobs JobStore, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if runner == nil {
		panic("dispatch: runner cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{runner: runner, queue: queue, jobs: jobs, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		deliveries, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, time.Duration(w.cfg.receiveWaitSecs)*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive dispatch jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, d := range deliveries {
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d Delivery) {
	if d.Err != nil {
		w.logger.Error("dropping undecodable dispatch job", "error", d.Err)
		w.ack(d)
		return
	}
	job := d.Job
	logger := w.logger.With("job_id", job.ID, "session", job.SessionKey)

	// A job that was received is finished even if shutdown starts mid-dispatch.
	runCtx := context.WithoutCancel(ctx)
	started := time.Now()
	outcome, err := w.runner.Dispatch(runCtx, job.Ticket)
	elapsed := time.Since(started)

	if err != nil {
		class := tickets.ErrorClass(err)
		logger.Error("dispatch failed", "error", err, "error_class", class)
		w.record("failed", class, elapsed)
		if w.jobs != nil {
			if storeErr := w.jobs.MarkFailed(runCtx, job.ID, class, err.Error()); storeErr != nil {
				logger.Error("failed to update job status", "error", storeErr)
			}
		}
	} else {
		logger.Info("dispatch completed",
			"ticket_id", outcome.Ticket.TicketID,
			"calendar_linked", outcome.CalendarLink != "",
			"notified", outcome.Notified,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		w.record("completed", "", elapsed)
		if w.jobs != nil {
			if storeErr := w.jobs.MarkCompleted(runCtx, job.ID, outcome); storeErr != nil {
				logger.Error("failed to update job status", "error", storeErr)
			}
		}
	}

	w.ack(d)
}

func (w *Worker) record(outcome, class string, elapsed time.Duration) {
	if w.cfg.recorder != nil {
		w.cfg.recorder.ObserveDispatch(outcome, class, elapsed)
	}
}

func (w *Worker) ack(d Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Ack(ctx, d); err != nil {
		w.logger.Error("failed to ack dispatch job", "error", err, "job_id", d.Job.ID)
	}
}
