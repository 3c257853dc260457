// Package whatsapp connects the WhatsApp Business channel to the conversation pipeline.
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

const maxWebhookBody = 1 << 20

// TextSender pushes a reply to a WhatsApp user.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// Handler serves the Meta webhook: the GET subscription handshake and POST message events.
type Handler struct {
	verifyToken string
	appSecret   string
	pipeline    conversation.Handler
	sender      TextSender
	logger      *logging.Logger
}

// NewHandler wires the webhook. An empty appSecret disables signature checks.
func NewHandler(verifyToken, appSecret string, pipeline conversation.Handler, sender TextSender, logger *logging.Logger) *Handler {
	if pipeline == nil {
		panic("whatsapp: conversation handler cannot be nil")
	}
	if sender == nil {
		panic("whatsapp: text sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		pipeline:    pipeline,
		sender:      sender,
		logger:      logger,
	}
}

// HandleVerification answers the subscription challenge.
func (h *Handler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.verifyToken != "" && q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound runs every text message through the pipeline and sends the replies.
func (h *Handler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("whatsapp webhook signature mismatch")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, msg := range ParseWebhookEvent(event) {
		h.process(r.Context(), msg)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, msg InboundMessage) {
	logger := h.logger.With("message_id", msg.MessageID)
	reply, err := h.pipeline.Handle(ctx, conversation.Inbound{
		Key:     session.WhatsAppKey(msg.From),
		Channel: session.ChannelWhatsApp,
		Text:    msg.Text,
	})
	if err != nil {
		logger.Error("whatsapp message failed", "error", err)
	}
	if reply.Text == "" {
		return
	}
	if err := h.sender.SendText(ctx, msg.From, reply.Text); err != nil {
		logger.Error("whatsapp reply not delivered", "error", err)
	}
}

// ParseWebhookEvent keeps text messages with a sender and a non-blank body.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var out []InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil || m.From == "" {
					continue
				}
				if strings.TrimSpace(m.Text.Body) == "" {
					continue
				}
				out = append(out, InboundMessage{From: m.From, MessageID: m.ID, Text: m.Text.Body})
			}
		}
	}
	return out
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>") against body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if appSecret == "" || !strings.HasPrefix(signature, prefix) || len(signature) == len(prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}
