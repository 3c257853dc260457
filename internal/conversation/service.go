// Package conversation runs each inbound chat message through safety checks, field
// extraction, the confirmation protocol and the dialogue engine.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/dialogue"
	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// Outcome labels a handled message for logs and metrics.
type Outcome string

const (
	OutcomeReplied   Outcome = "replied"
	OutcomeRecap     Outcome = "recap"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRefused   Outcome = "refused"
	OutcomeError     Outcome = "error"
)

// Inbound is one user message from any channel.
type Inbound struct {
	Key     string
	Channel session.Channel
	Text    string
}

// Reply is what goes back to the user.
type Reply struct {
	Text    string
	Outcome Outcome
	// JobID is set when the message confirmed a request and a dispatch was queued.
	JobID string
}

// Publisher queues a confirmed ticket for background dispatch.
type Publisher interface {
	Publish(ctx context.Context, data tickets.TicketData, sessionKey string) (string, error)
}

// Gate is a fail-closed safety check.
type Gate interface {
	Allow(ctx context.Context, text string) bool
}

// Recorder receives per-message metrics. Implemented by metrics.AssistantMetrics.
type Recorder interface {
	ObserveMessage(channel, outcome string)
	ObserveSafetyBlock(direction string)
}

// Handler processes inbound messages. Implemented by Service.
type Handler interface {
	Handle(ctx context.Context, in Inbound) (Reply, error)
}

// Service is the synchronous reply pipeline.
type Service struct {
	sessions  session.Store
	engine    dialogue.Engine
	publisher Publisher
	inbound   Gate
	outbound  Gate
	recorder  Recorder
	location  *time.Location
	now       func() time.Time
	logger    *logging.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithLocation sets the clinic timezone used to resolve relative dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder wires message metrics.
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// NewService wires the pipeline. inbound and outbound may be nil, in which case every
// message is refused.
func NewService(sessions session.Store, engine dialogue.Engine, publisher Publisher, inbound, outbound Gate, logger *logging.Logger, opts ...Option) *Service {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if engine == nil {
		panic("conversation: dialogue engine cannot be nil")
	}
	if publisher == nil {
		panic("conversation: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		sessions:  sessions,
		engine:    engine,
		publisher: publisher,
		inbound:   inbound,
		outbound:  outbound,
		location:  time.UTC,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs one message through the pipeline. Errors are internal failures; callers
// show InternalErrorMessage instead of the error.
func (s *Service) Handle(ctx context.Context, in Inbound) (Reply, error) {
	reply, err := s.handle(ctx, in)
	if err != nil {
		s.observe(in.Channel, OutcomeError)
		return Reply{Text: InternalErrorMessage, Outcome: OutcomeError}, err
	}
	s.observe(in.Channel, reply.Outcome)
	return reply, nil
}

func (s *Service) handle(ctx context.Context, in Inbound) (Reply, error) {
	text := strings.TrimSpace(in.Text)
	if in.Key == "" {
		return Reply{}, errors.New("conversation: session key required")
	}
	logger := s.logger.With("session_key", in.Key, "channel", in.Channel)

	if !s.allowed(ctx, s.inbound, text) {
		logger.Info("inbound message refused by safety classifier")
		s.blocked("inbound")
		return Reply{Text: RefusalMessage, Outcome: OutcomeRefused}, nil
	}

	unlock, err := s.sessions.Lock(ctx, in.Key)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, in.Key)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: load session: %w", err)
	}
	if sess == nil {
		sess = session.New(in.Key, in.Channel)
	}

	now := s.now().In(s.location)
	prior := turns(sess.History)
	sess.Append(session.RoleUser, text, now)

	reply, err := s.respond(ctx, sess, prior, text, now, logger)
	if err != nil {
		return Reply{}, err
	}
	if reply.Outcome == OutcomeConfirmed {
		return reply, nil
	}

	if !s.allowed(ctx, s.outbound, reply.Text) {
		logger.Warn("generated reply refused by safety classifier")
		s.blocked("outbound")
		// The user never saw a recap, so a later yes must not confirm anything.
		sess.State = session.StateCollecting
		reply = Reply{Text: RefusalMessage, Outcome: OutcomeRefused}
	}

	sess.Append(session.RoleAssistant, reply.Text, s.now().In(s.location))
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("conversation: save session: %w", err)
	}
	return reply, nil
}

// respond applies the confirmation protocol and mutates sess accordingly.
func (s *Service) respond(ctx context.Context, sess *session.Session, prior []dialogue.Turn, text string, now time.Time, logger *logging.Logger) (Reply, error) {
	in := Input{Affirmative: IsAffirmative(text)}

	// A yes to the recap confirms the fields that were shown, never re-extracted ones.
	if sess.ConfirmationPending() && in.Affirmative {
		return s.confirm(ctx, sess, sess.Fields, logger)
	}

	held := sess.Fields
	wasPending := sess.ConfirmationPending()
	fields := extraction.Extract(sess.CycleMessages(), now)
	sess.Fields = fields
	in.Complete = fields.Complete()
	decision := Step(sess.State, in)

	var engineReply string
	if decision.Action == ActionConverse || s.markerConfirms(sess.Channel) {
		reply, err := s.engine.Reply(ctx, prior, text)
		if err != nil {
			logger.Warn("dialogue engine failed; falling back to missing-field prompt", "error", err)
		} else {
			engineReply = reply
			if dialogue.HasConfirmMarker(reply) && s.markerConfirms(sess.Channel) {
				in.Marker = true
				decision = Step(sess.State, in)
			}
		}
	}

	switch decision.Action {
	case ActionConfirm:
		if wasPending {
			fields = held
		}
		return s.confirm(ctx, sess, fields, logger)
	case ActionRecap:
		sess.State = decision.Next
		logger.Info("fields complete; awaiting confirmation", "intent", fields.ActiveIntent())
		return Reply{Text: RecapMessage(fields), Outcome: OutcomeRecap}, nil
	case ActionAskMissing:
		sess.State = decision.Next
		logger.Info("confirmation marker with incomplete fields", "missing", fields.Missing())
		return Reply{Text: MissingFieldsMessage(fields), Outcome: OutcomeReplied}, nil
	default:
		sess.State = decision.Next
		text := dialogue.StripConfirmMarker(engineReply)
		if text == "" {
			text = MissingFieldsMessage(fields)
		}
		return Reply{Text: text, Outcome: OutcomeReplied}, nil
	}
}

// confirm saves the new cycle before publishing, so a session that failed to save is
// still awaiting confirmation and has no job queued for it.
func (s *Service) confirm(ctx context.Context, sess *session.Session, fields extraction.Fields, logger *logging.Logger) (Reply, error) {
	data := AssembleTicket(fields)
	snapshot := sess.Clone()

	sess.StartNewCycle()
	sess.Append(session.RoleAssistant, ProcessingMessage, s.now().In(s.location))
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("conversation: save confirmed session: %w", err)
	}

	jobID, err := s.publisher.Publish(ctx, data, sess.Key)
	if err != nil {
		if restoreErr := s.sessions.Put(ctx, snapshot); restoreErr != nil {
			logger.Error("failed to restore session after publish error", "error", restoreErr)
		}
		return Reply{}, fmt.Errorf("conversation: publish dispatch: %w", err)
	}
	logger.Info("request confirmed; dispatch queued", "job_id", jobID, "ticket_type", data.Type)
	return Reply{Text: ProcessingMessage, Outcome: OutcomeConfirmed, JobID: jobID}, nil
}

// Only the chat widget lets the dialogue engine confirm through the marker.
func (s *Service) markerConfirms(channel session.Channel) bool {
	return channel == session.ChannelWeb
}

func (s *Service) allowed(ctx context.Context, gate Gate, text string) bool {
	if gate == nil {
		return false
	}
	return gate.Allow(ctx, text)
}

func (s *Service) blocked(direction string) {
	if s.recorder != nil {
		s.recorder.ObserveSafetyBlock(direction)
	}
}

func (s *Service) observe(channel session.Channel, outcome Outcome) {
	if s.recorder != nil {
		s.recorder.ObserveMessage(string(channel), string(outcome))
	}
}

func turns(history []session.Message) []dialogue.Turn {
	out := make([]dialogue.Turn, 0, len(history))
	for _, m := range history {
		out = append(out, dialogue.Turn{Role: m.Role, Content: m.Content})
	}
	return out
}
