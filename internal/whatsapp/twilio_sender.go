package whatsapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

type twilioMessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers WhatsApp replies through Twilio's Messages API.
type TwilioSender struct {
	api    twilioMessageAPI
	from   string
	logger *logging.Logger
}

// NewTwilioSender builds a sender from account credentials. from is the
// WhatsApp-enabled Twilio number, with or without the "whatsapp:" prefix.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("whatsapp: twilio account SID and auth token are required")
	}
	if from == "" {
		return nil, fmt.Errorf("whatsapp: twilio sender number is required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSender(client.Api, from, logger), nil
}

func newTwilioSender(api twilioMessageAPI, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{api: api, from: whatsappAddress(from), logger: logger}
}

// SendText sends body to the given phone number. The Twilio SDK call is not
// context-aware, so ctx is only checked before sending.
func (s *TwilioSender) SendText(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(s.from)
	params.SetBody(text)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("whatsapp: twilio send to %s: %w", to, err)
	}
	if msg != nil && msg.Sid != nil {
		s.logger.Debug("twilio whatsapp message sent", "sid", *msg.Sid)
	}
	return nil
}

// whatsappAddress renders a phone number as "whatsapp:+<digits>".
func whatsappAddress(number string) string {
	number = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(number), "whatsapp:"))
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}
