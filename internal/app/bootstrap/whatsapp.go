package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/whatsapp"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// BuildWhatsAppSender returns the outbound transport for WhatsApp replies, or nil when
// the selected provider has no credentials and the channel should stay unmounted.
func BuildWhatsAppSender(cfg *appconfig.Config, logger *logging.Logger) (whatsapp.TextSender, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.WhatsAppProvider {
	case "", "cloud":
		if strings.TrimSpace(cfg.WhatsAppAccessToken) == "" || strings.TrimSpace(cfg.WhatsAppPhoneNumberID) == "" {
			logger.Info("whatsapp channel disabled; cloud api credentials missing")
			return nil, nil
		}
		return whatsapp.NewCloudClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID), nil
	case "twilio":
		if strings.TrimSpace(cfg.TwilioAccountSID) == "" {
			logger.Info("whatsapp channel disabled; twilio credentials missing")
			return nil, nil
		}
		sender, err := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown whatsapp provider %q", cfg.WhatsAppProvider)
	}
}
