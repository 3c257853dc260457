package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
)

const jobTTL = 7 * 24 * time.Hour

// JobStatus represents the lifecycle of a dispatch job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("dispatch: job not found")

// JobRecord is the auditable state of one dispatch.
type JobRecord struct {
	JobID        string       `dynamodbav:"jobId" json:"job_id"`
	Status       JobStatus    `dynamodbav:"status" json:"status"`
	SessionKey   string       `dynamodbav:"sessionKey,omitempty" json:"session_key,omitempty"`
	TicketType   tickets.Type `dynamodbav:"ticketType" json:"ticket_type"`
	TicketID     string       `dynamodbav:"ticketId,omitempty" json:"ticket_id,omitempty"`
	CalendarLink string       `dynamodbav:"calendarLink,omitempty" json:"calendar_link,omitempty"`
	Notified     bool         `dynamodbav:"notified" json:"notified"`
	ErrorClass   string       `dynamodbav:"errorClass,omitempty" json:"error_class,omitempty"`
	ErrorMessage string       `dynamodbav:"errorMessage,omitempty" json:"error_message,omitempty"`
	CreatedAt    string       `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    string       `dynamodbav:"updatedAt" json:"updated_at"`
	ExpiresAt    int64        `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// JobStore records dispatch outcomes so operators can audit them.
type JobStore interface {
	PutPending(ctx context.Context, job *JobRecord) error
	MarkCompleted(ctx context.Context, jobID string, outcome Outcome) error
	MarkFailed(ctx context.Context, jobID, errorClass, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// MemoryJobStore keeps job records in process memory.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
	now  func() time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]JobRecord), now: time.Now}
}

func (s *MemoryJobStore) PutPending(_ context.Context, job *JobRecord) error {
	if job == nil || job.JobID == "" {
		return errors.New("dispatch: job id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return errors.New("dispatch: job already recorded")
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	job.Status = JobStatusPending
	job.CreatedAt = stamp
	job.UpdatedAt = stamp
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryJobStore) MarkCompleted(_ context.Context, jobID string, outcome Outcome) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusCompleted
		job.TicketID = outcome.Ticket.TicketID
		job.CalendarLink = outcome.CalendarLink
		job.Notified = outcome.Notified
		job.ErrorClass = ""
		job.ErrorMessage = ""
	})
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, jobID, errorClass, errMsg string) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusFailed
		job.ErrorClass = errorClass
		job.ErrorMessage = errMsg
	})
}

func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryJobStore) update(jobID string, mutate func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	mutate(&job)
	job.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	s.jobs[jobID] = job
	return nil
}
