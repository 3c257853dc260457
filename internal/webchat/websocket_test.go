package webchat

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
)

func dialChat(t *testing.T, h *Handler, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn.Request().Context(), conn, conn.Request().URL.Query().Get("session"))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat" + query
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundFrame {
	t.Helper()
	var frame OutboundFrame
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	return frame
}

func TestWebSocketConversation(t *testing.T) {
	pipeline := &stubPipeline{reply: conversation.Reply{Text: "Bonjour, comment puis-je vous aider ?"}}
	conn := dialChat(t, newTestHandler(pipeline, nil), "?session=ws-1")

	assert.Equal(t, OutboundFrame{Type: "session", SessionID: "ws-1"}, receive(t, conn))

	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "message", Text: "Bonjour"}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Bonjour, comment puis-je vous aider ?", reply.Text)
	assert.Equal(t, "2024-06-15T09:30:00Z", reply.Timestamp)

	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	require.Len(t, pipeline.seen, 1)
	assert.Equal(t, session.WebKey("ws-1"), pipeline.seen[0].Key)
}

func TestWebSocketGeneratesSessionID(t *testing.T) {
	conn := dialChat(t, newTestHandler(&stubPipeline{}, nil), "")

	frame := receive(t, conn)
	assert.Equal(t, "session", frame.Type)
	assert.Len(t, frame.SessionID, 36)
}

func TestWebSocketSkipsBlankFramesAndReportsErrors(t *testing.T) {
	pipeline := &stubPipeline{err: errors.New("boom")}
	conn := dialChat(t, newTestHandler(pipeline, nil), "?session=ws-2")
	receive(t, conn)

	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "message", Text: "  "}))
	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "unknown", Text: "x"}))
	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "message", Text: "Bonjour"}))

	assert.Equal(t, "typing", receive(t, conn).Type)
	frame := receive(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, conversation.InternalErrorMessage, frame.Text)
}
