package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/dental-ai-assistant/internal/calendar"
	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/dispatch"
	"github.com/wolfman30/dental-ai-assistant/internal/notify"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

const memoryQueueBuffer = 64

// Dispatch bundles the publishing and consuming halves of background ticket dispatch.
type Dispatch struct {
	Publisher *dispatch.Publisher
	Worker    *dispatch.Worker
	Jobs      dispatch.JobStore
}

// BuildEmailSender selects the mailer. Missing credentials degrade to the stub sender,
// which only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			logger.Warn("EMAIL_PROVIDER=sendgrid without SENDGRID_API_KEY; confirmations are only logged")
			return notify.NewStubEmailSender(logger), nil
		}
		return sender, nil
	case "ses":
		if awsCfg == nil {
			return nil, errors.New("bootstrap: ses requires aws config")
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger), nil
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

// BuildCalendar returns the Google calendar when GOOGLE_CALENDAR_ID is set, or nil so
// dispatch skips the booking step.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (calendar.Service, error) {
	if cfg == nil || strings.TrimSpace(cfg.GoogleCalendarID) == "" {
		return nil, nil
	}
	cal, err := calendar.NewGoogleCalendar(ctx, cfg.GoogleCalendarID, cfg.GoogleCredentialsFile, cfg.ClinicTimezone, logger)
	if err != nil {
		return nil, err
	}
	return cal, nil
}

// BuildDispatcher assembles the calendar, store and notification steps run per job.
func BuildDispatcher(cfg *appconfig.Config, store tickets.Store, sender notify.EmailSender, cal calendar.Service, logger *logging.Logger) *dispatch.Dispatcher {
	opts := []dispatch.Option{
		dispatch.WithLocation(cfg.Location()),
		dispatch.WithAppointmentDuration(cfg.AppointmentDuration),
		dispatch.WithCallTimeout(cfg.DispatchCallTimeout),
	}
	if cal != nil {
		opts = append(opts, dispatch.WithCalendar(cal))
	}
	notifier := notify.NewEmailNotifier(sender, cfg.ClinicName, logger)
	return dispatch.NewDispatcher(store, notifier, logger, opts...)
}

// BuildDispatch wires the queue and job store selected by config around runner.
func BuildDispatch(cfg *appconfig.Config, awsCfg *aws.Config, runner dispatch.Runner, recorder dispatch.Recorder, logger *logging.Logger) (*Dispatch, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var jobs dispatch.JobStore = dispatch.NewMemoryJobStore()
	if table := strings.TrimSpace(cfg.DispatchJobsTable); table != "" {
		if awsCfg == nil {
			return nil, errors.New("bootstrap: DISPATCH_JOBS_TABLE requires aws config")
		}
		jobs = dispatch.NewDynamoJobStore(dynamodb.NewFromConfig(*awsCfg), table, logger)
	}

	var queue dispatch.Queue
	switch cfg.DispatchQueue {
	case "", "memory":
		queue = dispatch.NewMemoryQueue(memoryQueueBuffer)
	case "sqs":
		if awsCfg == nil {
			return nil, errors.New("bootstrap: sqs requires aws config")
		}
		if strings.TrimSpace(cfg.DispatchQueueURL) == "" {
			return nil, errors.New("bootstrap: DISPATCH_QUEUE=sqs requires DISPATCH_QUEUE_URL")
		}
		queue = dispatch.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.DispatchQueueURL)
	default:
		return nil, fmt.Errorf("bootstrap: unknown dispatch queue %q", cfg.DispatchQueue)
	}

	workerOpts := []dispatch.WorkerOption{dispatch.WithWorkerCount(cfg.DispatchWorkers)}
	if recorder != nil {
		workerOpts = append(workerOpts, dispatch.WithRecorder(recorder))
	}
	logger.Info("dispatch ready", "queue", cfg.DispatchQueue, "workers", cfg.DispatchWorkers)
	return &Dispatch{
		Publisher: dispatch.NewPublisher(queue, jobs, logger),
		Worker:    dispatch.NewWorker(runner, queue, jobs, logger, workerOpts...),
		Jobs:      jobs,
	}, nil
}
