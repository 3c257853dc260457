package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

type recordedDispatch struct {
	outcome string
	class   string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedDispatch
}

func (r *fakeRecorder) ObserveDispatch(outcome, class string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedDispatch{outcome: outcome, class: class})
}

func waitForStatus(t *testing.T, jobs JobStore, jobID string, want JobStatus) *JobRecord {
	t.Helper()
	var record *JobRecord
	require.Eventually(t, func() bool {
		got, err := jobs.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		record = got
		return got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return record
}

func TestWorkerProcessesPublishedJob(t *testing.T) {
	queue := NewMemoryQueue(4)
	jobs := NewMemoryJobStore()
	store := tickets.NewMemoryStore()
	notifier := &recordingNotifier{}
	recorder := &fakeRecorder{}

	publisher := NewPublisher(queue, jobs, logging.Default())
	worker := NewWorker(newTestDispatcher(store, notifier), queue, jobs, logging.Default(),
		WithWorkerCount(1), WithReceiveWaitSeconds(1), WithRecorder(recorder))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	jobID, err := publisher.Publish(context.Background(), appointmentData(), "web:abc")
	require.NoError(t, err)

	record := waitForStatus(t, jobs, jobID, JobStatusCompleted)
	cancel()
	worker.Wait()

	assert.True(t, record.Notified)
	assert.Equal(t, "web:abc", record.SessionKey)
	require.Len(t, store.All(), 1)
	assert.Equal(t, store.All()[0].TicketID, record.TicketID)
	assert.Equal(t, []recordedDispatch{{outcome: "completed", class: ""}}, recorder.records)
}

func TestWorkerRecordsFailureClass(t *testing.T) {
	queue := NewMemoryQueue(4)
	jobs := NewMemoryJobStore()
	notifier := &recordingNotifier{}
	recorder := &fakeRecorder{}
	store := failingStore{err: errors.New("permission denied for table tickets")}

	publisher := NewPublisher(queue, jobs, logging.Default())
	worker := NewWorker(newTestDispatcher(store, notifier), queue, jobs, logging.Default(),
		WithWorkerCount(1), WithReceiveWaitSeconds(1), WithRecorder(recorder))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	jobID, err := publisher.Publish(context.Background(), appointmentData(), "wa:221770000000")
	require.NoError(t, err)

	record := waitForStatus(t, jobs, jobID, JobStatusFailed)
	cancel()
	worker.Wait()

	assert.Equal(t, "permission", record.ErrorClass)
	assert.Contains(t, record.ErrorMessage, "permission denied")
	assert.Equal(t, 0, notifier.count())
	assert.Equal(t, []recordedDispatch{{outcome: "failed", class: "permission"}}, recorder.records)
}

func TestWorkerAcksUndecodableJob(t *testing.T) {
	fake := &fakeSQS{sent: []string{"not json", `{"ticket":{}}`}}
	queue := newSQSQueue(fake, "https://sqs.local/queue")
	store := tickets.NewMemoryStore()
	worker := NewWorker(newTestDispatcher(store, &recordingNotifier{}), queue, nil, logging.Default())

	deliveries, err := queue.Receive(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	for _, d := range deliveries {
		require.Error(t, d.Err)
		assert.NotPanics(t, func() { worker.handle(context.Background(), d) })
	}

	assert.Equal(t, []string{"rh-0", "rh-1"}, fake.deleted)
	assert.Empty(t, store.All())
}

func TestWorkerFinishesJobAfterCancellation(t *testing.T) {
	queue := NewMemoryQueue(1)
	store := tickets.NewMemoryStore()
	worker := NewWorker(newTestDispatcher(store, &recordingNotifier{}), queue, nil, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.handle(ctx, Delivery{Job: Job{ID: "j1", Ticket: appointmentData()}, Receipt: "j1"})

	assert.Len(t, store.All(), 1)
}

func TestWorkerOptionsClamp(t *testing.T) {
	cfg := workerConfig{}
	WithReceiveWaitSeconds(60)(&cfg)
	WithReceiveBatchSize(50)(&cfg)
	WithWorkerCount(0)(&cfg)

	assert.Equal(t, maxWaitSeconds, cfg.receiveWaitSecs)
	assert.Equal(t, maxReceiveBatchSize, cfg.receiveBatchSize)
	assert.Equal(t, 0, cfg.workers)
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	queue := NewMemoryQueue(1)
	deliveries, err := queue.Receive(context.Background(), 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestMemoryQueueBatches(t *testing.T) {
	queue := NewMemoryQueue(8)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Send(context.Background(), Job{ID: id, Ticket: appointmentData()}))
	}
	deliveries, err := queue.Receive(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, "a", deliveries[0].Job.ID)
	assert.Equal(t, "b", deliveries[1].Receipt)
	assert.Equal(t, 1, queue.Pending())
}

func TestMemoryQueueRejectsJobWithoutID(t *testing.T) {
	queue := NewMemoryQueue(1)
	assert.ErrorIs(t, queue.Send(context.Background(), Job{}), errJobWithoutID)
	assert.Equal(t, 0, queue.Pending())
}

func TestMemoryQueueSendHonoursContext(t *testing.T) {
	queue := NewMemoryQueue(1)
	require.NoError(t, queue.Send(context.Background(), Job{ID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.Send(ctx, Job{ID: "b"}), context.DeadlineExceeded)
}

type fakeSQS struct {
	sent       []string
	attributes []map[string]sqstypes.MessageAttributeValue
	received   []*sqs.ReceiveMessageInput
	deleted    []string
	recvErr    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	f.attributes = append(f.attributes, in.MessageAttributes)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = append(f.received, in)
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	var out []sqstypes.Message
	for i, body := range f.sent {
		if int32(i) >= in.MaxNumberOfMessages {
			break
		}
		out = append(out, sqstypes.Message{
			MessageId:     aws.String(fmt.Sprintf("m-%d", i)),
			Body:          aws.String(body),
			ReceiptHandle: aws.String(fmt.Sprintf("rh-%d", i)),
		})
	}
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueRoundTrip(t *testing.T) {
	fake := &fakeSQS{}
	queue := newSQSQueue(fake, "https://sqs.local/queue")
	job := Job{ID: "j1", SessionKey: "web:abc", Ticket: appointmentData()}

	require.NoError(t, queue.Send(context.Background(), job))
	require.Len(t, fake.attributes, 1)
	assert.Equal(t, "appointment", aws.ToString(fake.attributes[0][ticketTypeAttribute].StringValue))

	deliveries, err := queue.Receive(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.NoError(t, deliveries[0].Err)
	assert.Equal(t, "j1", deliveries[0].Job.ID)
	assert.Equal(t, "web:abc", deliveries[0].Job.SessionKey)
	assert.Equal(t, "Marie", deliveries[0].Job.Ticket.Name)

	require.NoError(t, queue.Ack(context.Background(), deliveries[0]))
	require.NoError(t, queue.Ack(context.Background(), Delivery{}))
	assert.Equal(t, []string{"rh-0"}, fake.deleted)
}

func TestSQSQueueClampsReceive(t *testing.T) {
	fake := &fakeSQS{}
	queue := newSQSQueue(fake, "https://sqs.local/queue")

	_, err := queue.Receive(context.Background(), 50, time.Minute)
	require.NoError(t, err)

	require.Len(t, fake.received, 1)
	assert.Equal(t, int32(10), fake.received[0].MaxNumberOfMessages)
	assert.Equal(t, int32(20), fake.received[0].WaitTimeSeconds)
}

func TestSQSQueueSendRejectsJobWithoutID(t *testing.T) {
	fake := &fakeSQS{}
	queue := newSQSQueue(fake, "https://sqs.local/queue")

	assert.ErrorIs(t, queue.Send(context.Background(), Job{}), errJobWithoutID)
	assert.Empty(t, fake.sent)
}

func TestSQSQueueReceiveError(t *testing.T) {
	queue := newSQSQueue(&fakeSQS{recvErr: errors.New("throttled")}, "https://sqs.local/queue")
	_, err := queue.Receive(context.Background(), 1, 0)
	assert.ErrorContains(t, err, "throttled")
	assert.Panics(t, func() { newSQSQueue(&fakeSQS{}, "") })
}
