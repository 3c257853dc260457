package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "rdv@clinique.sn"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "rdv@clinique.sn"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "rdv@clinique.sn"}, nil)
	sender.client.BaseURL = srv.URL

	err := sender.Send(context.Background(), EmailMessage{To: "marie@test.sn", Subject: "Confirmation", Body: "Bonjour"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if body["subject"] != "Confirmation" {
		t.Errorf("unexpected payload subject: %v", body["subject"])
	}
}

func TestSendGridSender_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "bad-key", FromEmail: "rdv@clinique.sn"}, nil)
	sender.client.BaseURL = srv.URL

	if err := sender.Send(context.Background(), EmailMessage{To: "marie@test.sn"}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "marie@test.sn"}); err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, SESConfig{FromEmail: "rdv@clinique.sn"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "marie@test.sn", Subject: "Sujet", Body: "texte", HTML: "<p>html</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "Cabinet Dentaire <rdv@clinique.sn>" {
		t.Errorf("unexpected from %q", got)
	}
	if api.input.Content.Simple.Body.Html == nil || api.input.Content.Simple.Body.Text == nil {
		t.Error("expected both text and html bodies")
	}

	api.err = errors.New("throttled")
	if err := sender.Send(context.Background(), EmailMessage{To: "marie@test.sn"}); err == nil {
		t.Error("expected SES error to propagate")
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Error("expected nil sender without client")
	}
}

type failingSender struct{}

func (failingSender) Send(context.Context, EmailMessage) error { return errors.New("smtp down") }

func TestEmailNotifier_AppointmentConfirmation(t *testing.T) {
	stub := NewStubEmailSender(nil)
	notifier := NewEmailNotifier(stub, "Clinique Dentaire Dakar", nil)

	ticket := tickets.Ticket{
		TicketID:  "TCK-0A1B2C3D",
		CreatedAt: time.Now(),
		TicketData: tickets.TicketData{
			Type:              tickets.TypeAppointment,
			Name:              "Marie <b>",
			Email:             "marie@test.sn",
			Phone:             "771234567",
			ServiceType:       "Détartrage",
			ProposedDate:      "2024-06-16",
			ProposedTime:      "10h00",
			CalendarEventLink: "https://calendar/evt",
		},
	}
	if err := notifier.SendConfirmation(context.Background(), ticket, "marie@test.sn"); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}

	sent := stub.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	msg := sent[0]
	if !strings.Contains(msg.Subject, "TCK-0A1B2C3D") || !strings.Contains(msg.Subject, "rendez-vous") {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Détartrage", "2024-06-16", "10h00", "https://calendar/evt"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("text body missing %q", want)
		}
	}
	if strings.Contains(msg.HTML, "<b>") {
		t.Error("html body must escape patient input")
	}
}

func TestEmailNotifier_SupportConfirmation(t *testing.T) {
	stub := NewStubEmailSender(nil)
	notifier := NewEmailNotifier(stub, "", nil)

	ticket := tickets.Ticket{
		TicketID: "TCK-FFFFFFFF",
		TicketData: tickets.TicketData{
			Type:        tickets.TypeSupport,
			Name:        "Awa",
			IssueType:   "Facturation",
			Description: "facture en double",
		},
	}
	if err := notifier.SendConfirmation(context.Background(), ticket, "awa@test.sn"); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}
	msg := stub.Sent()[0]
	if !strings.Contains(msg.Subject, "support") || !strings.Contains(msg.Body, "Facturation") {
		t.Errorf("unexpected support email: %q / %q", msg.Subject, msg.Body)
	}
}

func TestEmailNotifier_Errors(t *testing.T) {
	notifier := NewEmailNotifier(failingSender{}, "Clinique", nil)
	if err := notifier.SendConfirmation(context.Background(), tickets.Ticket{TicketID: "TCK-1"}, "a@b.sn"); err == nil {
		t.Error("expected sender error to propagate")
	}
	if err := notifier.SendConfirmation(context.Background(), tickets.Ticket{}, " "); err == nil {
		t.Error("expected error for empty recipient")
	}
}
