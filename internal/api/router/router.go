package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-ai-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-ai-assistant/internal/http/middleware"
	"github.com/wolfman30/dental-ai-assistant/internal/webchat"
	"github.com/wolfman30/dental-ai-assistant/internal/whatsapp"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger   *logging.Logger
	WebChat  *webchat.Handler
	WhatsApp *whatsapp.Handler

	// Optional.
	AdminDispatch      *handlers.AdminDispatchHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	ChatLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WebChat != nil {
		r.Route("/api", func(api chi.Router) {
			chat := http.HandlerFunc(cfg.WebChat.HandleChat)
			if cfg.ChatLimiter != nil {
				api.With(cfg.ChatLimiter.Middleware).Post("/chat", chat)
			} else {
				api.Post("/chat", chat)
			}
			api.Get("/check_ticket", cfg.WebChat.HandleCheckTicket)
			api.Get("/history", cfg.WebChat.HandleHistory)
		})
		r.Get("/ws/chat", cfg.WebChat.HandleWebSocket)
	}

	if cfg.WhatsApp != nil {
		for _, path := range []string{"/webhook", "/whatsapp/webhook"} {
			r.Get(path, cfg.WhatsApp.HandleVerification)
			r.Post(path, cfg.WhatsApp.HandleInbound)
		}
	}

	if cfg.AdminDispatch != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/dispatches/{jobID}", cfg.AdminDispatch.GetDispatch)
		})
	}

	return r
}
