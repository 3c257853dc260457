package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/webchat"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

func localConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:                 "test",
		ClinicName:          "Cabinet Test",
		ClinicTimezone:      "Africa/Dakar",
		AppointmentDuration: time.Hour,
		SessionStore:        "memory",
		SessionTTL:          time.Hour,
		TicketStore:         "memory",
		DispatchQueue:       "memory",
		DispatchWorkers:     1,
		DispatchCallTimeout: time.Second,
		EmailProvider:       "stub",
		WhatsAppProvider:    "cloud",
		ChatRateLimit:       100,
		CORSAllowedOrigins:  []string{"*"},
	}
}

func TestSetupMetricsExposesAssistantCounters(t *testing.T) {
	handler, m := setupMetrics(prometheus.NewRegistry())
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveMessage("web", "replied")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "dental_chat_messages_total") {
		t.Fatalf("expected chat counter to be exported")
	}
}

func TestBuildAppLocalDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, localConfig(), logging.New("error"), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.close()
	a.start(ctx)

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	body := `{"history":[{"role":"user","content":"Bonjour"}],"session_id":"main-test"}`
	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected chat 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp webchat.ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response == "" {
		t.Fatalf("expected a reply without an llm provider")
	}

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected whatsapp routes unmounted without credentials, got %d", rr.Code)
	}

	cancel()
	a.dispatch.Worker.Wait()
}

func TestBuildAppRejectsUnknownBackends(t *testing.T) {
	cfg := localConfig()
	cfg.TicketStore = "mongo"
	if _, err := buildApp(context.Background(), cfg, logging.New("error"), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected error for unknown ticket store")
	}
}
