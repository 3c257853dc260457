package webchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
)

// InboundFrame is what the widget sends over the websocket.
type InboundFrame struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundFrame is what the server pushes to the widget.
type OutboundFrame struct {
	Type      string           `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HandleWebSocket upgrades /ws/chat and answers each message frame on the same socket.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, r.URL.Query().Get("session"))
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := h.logger.With("session_id", sessionID)

	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "session", SessionID: sessionID})
	if history, err := h.history(ctx, sessionID); err == nil && len(history) > 0 {
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "history", Messages: history})
	}
	logger.Info("webchat: connection opened")

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}
		switch {
		case frame.Type == "ping":
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
			continue
		case frame.Type != "message" || strings.TrimSpace(frame.Text) == "":
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "typing"})
		reply, err := h.pipeline.Handle(ctx, conversation.Inbound{
			Key:     session.WebKey(sessionID),
			Channel: session.ChannelWeb,
			Text:    frame.Text,
		})
		if err != nil {
			logger.Error("webchat: message failed", "error", err)
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: conversation.InternalErrorMessage})
			continue
		}
		if err := websocket.JSON.Send(conn, OutboundFrame{
			Type:      "message",
			Role:      session.RoleAssistant,
			Text:      reply.Text,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		}); err != nil {
			logger.Debug("webchat: reply not delivered", "error", err)
			return
		}
	}
}
