// Package webchat serves the chat widget endpoints: the JSON chat API, the ticket
// lookup used by the widget after a confirmation, and a websocket variant.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// DefaultSessionID is used when the widget does not send one.
const DefaultSessionID = "default_web_session"

// RecentTicketWindow bounds how old a ticket may be for the confirmation lookup.
const RecentTicketWindow = 2 * time.Minute

const maxChatBody = 64 << 10

// Widget-facing error texts.
const (
	emptyHistoryMessage = "L'historique de conversation est vide"
	emptyContentMessage = "Message utilisateur vide"
	missingEmailMessage = "Email manquant"
	lookupErrorMessage  = "Erreur interne"
)

// TicketFinder looks up the newest ticket for an email address.
type TicketFinder interface {
	FindRecent(ctx context.Context, email string, since time.Time) (*tickets.Ticket, error)
}

// SessionReader loads a conversation for history replay.
type SessionReader interface {
	Get(ctx context.Context, key string) (*session.Session, error)
}

// Handler serves the web chat channel.
type Handler struct {
	pipeline conversation.Handler
	tickets  TicketFinder
	sessions SessionReader
	logger   *logging.Logger
	now      func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithSessionReader enables history replay on /api/history and websocket connect.
func WithSessionReader(reader SessionReader) Option {
	return func(h *Handler) {
		h.sessions = reader
	}
}

// WithClock overrides the time source used for the ticket lookup window.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a web chat handler.
func NewHandler(pipeline conversation.Handler, finder TicketFinder, logger *logging.Logger, opts ...Option) *Handler {
	if pipeline == nil {
		panic("webchat: conversation handler cannot be nil")
	}
	if finder == nil {
		panic("webchat: ticket finder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		pipeline: pipeline,
		tickets:  finder,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ChatTurn is one entry of the widget's local history.
type ChatTurn struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// ChatRequest is the POST /api/chat body. Only the last history entry is new;
// the server keeps the authoritative conversation.
type ChatRequest struct {
	History   []ChatTurn `json:"history"`
	SessionID string     `json:"session_id"`
}

// ChatResponse is the POST /api/chat reply.
type ChatResponse struct {
	Status   string `json:"status"`
	Response string `json:"response"`
	JobID    string `json:"job_id,omitempty"`
}

// HandleChat answers one widget message.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Status: "error", Response: "Requête invalide"})
		return
	}
	if len(req.History) == 0 {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Status: "error", Response: emptyHistoryMessage})
		return
	}
	text := strings.TrimSpace(req.History[len(req.History)-1].Content)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Status: "error", Response: emptyContentMessage})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	reply, err := h.pipeline.Handle(r.Context(), conversation.Inbound{
		Key:     session.WebKey(sessionID),
		Channel: session.ChannelWeb,
		Text:    text,
	})
	if err != nil {
		h.logger.Error("webchat: message failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ChatResponse{Status: "error", Response: conversation.InternalErrorMessage})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Status: "success", Response: reply.Text, JobID: reply.JobID})
}

// TicketLookupResponse is the GET /api/check_ticket reply.
type TicketLookupResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Found       bool   `json:"found"`
	TicketID    string `json:"ticket_id,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
}

// HandleCheckTicket reports whether a ticket was created for email in the last two minutes.
func (h *Handler) HandleCheckTicket(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeJSON(w, http.StatusBadRequest, TicketLookupResponse{Status: "error", Message: missingEmailMessage})
		return
	}

	ticket, err := h.tickets.FindRecent(r.Context(), email, h.now().Add(-RecentTicketWindow))
	switch {
	case errors.Is(err, tickets.ErrNotFound):
		writeJSON(w, http.StatusOK, TicketLookupResponse{Status: "success"})
	case err != nil:
		h.logger.Error("webchat: ticket lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, TicketLookupResponse{Status: "error", Message: lookupErrorMessage})
	default:
		writeJSON(w, http.StatusOK, TicketLookupResponse{
			Status:      "success",
			Found:       true,
			TicketID:    ticket.TicketID,
			ServiceType: ticket.ServiceType,
			Date:        ticket.ProposedDate,
			Time:        ticket.ProposedTime,
		})
	}
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// HandleHistory returns the stored conversation for ?session=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	history, err := h.history(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (h *Handler) history(ctx context.Context, sessionID string) ([]HistoryMessage, error) {
	out := []HistoryMessage{}
	if h.sessions == nil {
		return out, nil
	}
	sess, err := h.sessions.Get(ctx, session.WebKey(sessionID))
	if err != nil || sess == nil {
		return out, err
	}
	for _, m := range sess.History {
		out = append(out, HistoryMessage{
			Role:      m.Role,
			Text:      m.Content,
			Timestamp: m.At.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
