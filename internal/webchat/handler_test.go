package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

type stubPipeline struct {
	mu    sync.Mutex
	seen  []conversation.Inbound
	reply conversation.Reply
	err   error
}

func (p *stubPipeline) Handle(_ context.Context, in conversation.Inbound) (conversation.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, in)
	if p.err != nil {
		return conversation.Reply{Text: conversation.InternalErrorMessage, Outcome: conversation.OutcomeError}, p.err
	}
	return p.reply, nil
}

type brokenFinder struct{}

func (brokenFinder) FindRecent(context.Context, string, time.Time) (*tickets.Ticket, error) {
	return nil, errors.New("connection refused")
}

func newTestHandler(pipeline conversation.Handler, finder TicketFinder, opts ...Option) *Handler {
	if finder == nil {
		finder = tickets.NewMemoryStore()
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewHandler(pipeline, finder, logging.New("error"), opts...)
}

func postChat(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleChat(w, req)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandleChat(t *testing.T) {
	pipeline := &stubPipeline{reply: conversation.Reply{Text: "Bonjour !", Outcome: conversation.OutcomeReplied}}
	h := newTestHandler(pipeline, nil)

	w, resp := postChat(t, h, `{"history":[{"role":"user","content":"salut"},{"role":"assistant","content":"..."},{"role":"user","content":" Bonjour "}],"session_id":"abc"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, ChatResponse{Status: "success", Response: "Bonjour !"}, resp)
	require.Len(t, pipeline.seen, 1)
	assert.Equal(t, conversation.Inbound{Key: session.WebKey("abc"), Channel: session.ChannelWeb, Text: "Bonjour"}, pipeline.seen[0])
}

func TestHandleChatDefaultSession(t *testing.T) {
	pipeline := &stubPipeline{reply: conversation.Reply{Text: "ok"}}
	h := newTestHandler(pipeline, nil)

	postChat(t, h, `{"history":[{"content":"Bonjour"}]}`)

	require.Len(t, pipeline.seen, 1)
	assert.Equal(t, session.WebKey(DefaultSessionID), pipeline.seen[0].Key)
}

func TestHandleChatConfirmationCarriesJobID(t *testing.T) {
	pipeline := &stubPipeline{reply: conversation.Reply{Text: conversation.ProcessingMessage, Outcome: conversation.OutcomeConfirmed, JobID: "job-1"}}
	h := newTestHandler(pipeline, nil)

	_, resp := postChat(t, h, `{"history":[{"content":"oui"}],"session_id":"abc"}`)

	assert.Equal(t, conversation.ProcessingMessage, resp.Response)
	assert.Equal(t, "job-1", resp.JobID)
}

func TestHandleChatValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
	}{
		{"empty history", `{"history":[],"session_id":"abc"}`, emptyHistoryMessage},
		{"missing history", `{"session_id":"abc"}`, emptyHistoryMessage},
		{"empty content", `{"history":[{"content":"   "}]}`, emptyContentMessage},
		{"malformed body", `{"history":`, "Requête invalide"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &stubPipeline{}
			h := newTestHandler(pipeline, nil)

			w, resp := postChat(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantText, resp.Response)
			assert.Empty(t, pipeline.seen)
		})
	}
}

func TestHandleChatInternalError(t *testing.T) {
	h := newTestHandler(&stubPipeline{err: errors.New("pq: relation does not exist")}, nil)

	w, resp := postChat(t, h, `{"history":[{"content":"Bonjour"}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ChatResponse{Status: "error", Response: conversation.InternalErrorMessage}, resp)
	assert.NotContains(t, w.Body.String(), "relation")
}

func checkTicket(t *testing.T, h *Handler, query string) (*httptest.ResponseRecorder, TicketLookupResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleCheckTicket(w, httptest.NewRequest(http.MethodGet, "/api/check_ticket"+query, nil))
	var resp TicketLookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandleCheckTicket(t *testing.T) {
	store := tickets.NewMemoryStore()
	require.NoError(t, store.Insert(context.Background(), tickets.Ticket{
		TicketID:  "TCK-0000AAAA",
		CreatedAt: fixedNow.Add(-30 * time.Second),
		TicketData: tickets.TicketData{
			Type:         tickets.TypeAppointment,
			Email:        "marie@test.sn",
			ServiceType:  "Détartrage",
			ProposedDate: "2024-06-16",
			ProposedTime: "10h00",
		},
	}))
	require.NoError(t, store.Insert(context.Background(), tickets.Ticket{
		TicketID:   "TCK-0000BBBB",
		CreatedAt:  fixedNow.Add(-10 * time.Minute),
		TicketData: tickets.TicketData{Type: tickets.TypeAppointment, Email: "old@test.sn"},
	}))
	h := newTestHandler(&stubPipeline{}, store)

	w, resp := checkTicket(t, h, "?email=marie@test.sn")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TicketLookupResponse{
		Status:      "success",
		Found:       true,
		TicketID:    "TCK-0000AAAA",
		ServiceType: "Détartrage",
		Date:        "2024-06-16",
		Time:        "10h00",
	}, resp)

	w, resp = checkTicket(t, h, "?email=old@test.sn")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TicketLookupResponse{Status: "success"}, resp)
	assert.Contains(t, w.Body.String(), `"found":false`)
}

func TestHandleCheckTicketErrors(t *testing.T) {
	w, resp := checkTicket(t, newTestHandler(&stubPipeline{}, nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, missingEmailMessage, resp.Message)

	w, resp = checkTicket(t, newTestHandler(&stubPipeline{}, brokenFinder{}), "?email=a@b.sn")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", resp.Status)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestHandleHistory(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, nil)
	sess := session.New(session.WebKey("abc"), session.ChannelWeb)
	sess.Append(session.RoleUser, "Bonjour", fixedNow)
	sess.Append(session.RoleAssistant, "Bonjour ! Que puis-je faire pour vous ?", fixedNow)
	require.NoError(t, store.Put(context.Background(), sess))

	h := newTestHandler(&stubPipeline{}, nil, WithSessionReader(store))

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history?session=abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, HistoryMessage{Role: "user", Text: "Bonjour", Timestamp: "2024-06-15T09:30:00Z"}, resp.Messages[0])
	assert.Equal(t, "assistant", resp.Messages[1].Role)
}

func TestHandleHistoryWithoutStore(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil)

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history?session=abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewHandlerPanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { NewHandler(nil, tickets.NewMemoryStore(), nil) })
	assert.Panics(t, func() { NewHandler(&stubPipeline{}, nil, nil) })
}
