package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message attribute carrying the ticket type, so queue consumers and DLQ tooling can
// filter without decoding the body.
const ticketTypeAttribute = "ticket_type"

// SQS caps a receive at 10 messages and a long poll at 20 seconds.
const (
	sqsMaxBatch = 10
	sqsMaxWait  = 20 * time.Second
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries JSON-encoded jobs over SQS (or LocalStack). A job stays on the queue
// until a worker acks it, so a crashed worker's job is redelivered after the visibility
// timeout.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("dispatch: SQS client cannot be nil")
	}
	return newSQSQueue(client, queueURL)
}

func newSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if queueURL == "" {
		panic("dispatch: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, job Job) error {
	body, err := job.encode()
	if err != nil {
		return err
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if job.Ticket.Type != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			ticketTypeAttribute: {DataType: aws.String("String"), StringValue: aws.String(string(job.Ticket.Type))},
		}
	}
	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("dispatch: send job %s to SQS: %w", job.ID, err)
	}
	return nil
}

// Receive decodes every message it gets; a body that does not decode comes back as a
// Delivery with Err set so the worker can ack it instead of letting it cycle.
func (q *SQSQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	if max > sqsMaxBatch {
		max = sqsMaxBatch
	}
	if wait > sqsMaxWait {
		wait = sqsMaxWait
	}
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageAttributeNames: []string{ticketTypeAttribute},
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: receive from SQS: %w", err)
	}

	deliveries := make([]Delivery, 0, len(output.Messages))
	for _, msg := range output.Messages {
		d := Delivery{Receipt: aws.ToString(msg.ReceiptHandle)}
		if d.Job, err = decodeJob(aws.ToString(msg.Body)); err != nil {
			d.Err = fmt.Errorf("SQS message %s: %w", aws.ToString(msg.MessageId), err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

func (q *SQSQueue) Ack(ctx context.Context, d Delivery) error {
	if d.Receipt == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(d.Receipt),
	})
	if err != nil {
		return fmt.Errorf("dispatch: delete SQS message: %w", err)
	}
	return nil
}
