package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-ai-assistant/internal/api/router"
	"github.com/wolfman30/dental-ai-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/conversation"
	"github.com/wolfman30/dental-ai-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-ai-assistant/internal/http/middleware"
	"github.com/wolfman30/dental-ai-assistant/internal/observability/metrics"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/internal/webchat"
	"github.com/wolfman30/dental-ai-assistant/internal/whatsapp"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

const (
	chatRateBurst          = 5
	sessionJanitorInterval = 5 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

// app is everything the API process runs: the HTTP handler plus the background work
// started alongside it.
type app struct {
	handler  http.Handler
	dispatch *bootstrap.Dispatch
	sessions session.Store
	limiter  *httpmiddleware.RateLimiter
	closers  []func()
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting dental-ai-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic", cfg.ClinicName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.close()

	workCtx, cancelWork := context.WithCancel(context.Background())
	a.start(workCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop workers only after in-flight requests have published their jobs.
	cancelWork()
	a.dispatch.Worker.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the assistant collectors on reg and returns the scrape handler.
func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.AssistantMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewAssistantMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), m
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}
	metricsHandler, recorder := setupMetrics(reg)

	var awsCfg *aws.Config
	if cfg.UsesAWS() {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}
	sessions, err := bootstrap.BuildSessionStore(cfg, redisClient, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sessions = sessions

	ticketStore, closeTickets, err := bootstrap.BuildTicketStore(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeTickets)

	llmClient, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeLLM)

	sender, err := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	cal, err := bootstrap.BuildCalendar(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	runner := bootstrap.BuildDispatcher(cfg, ticketStore, sender, cal, logger)
	d, err := bootstrap.BuildDispatch(cfg, awsCfg, runner, recorder, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.dispatch = d

	inbound, outbound := bootstrap.BuildSafetyGates(cfg, llmClient, logger)
	svc := conversation.NewService(
		sessions,
		bootstrap.BuildEngine(llmClient, cfg, logger),
		d.Publisher,
		inbound,
		outbound,
		logger,
		conversation.WithLocation(cfg.Location()),
		conversation.WithRecorder(recorder),
	)

	routerCfg := &router.Config{
		Logger:             logger,
		WebChat:            webchat.NewHandler(svc, ticketStore, logger, webchat.WithSessionReader(sessions)),
		AdminDispatch:      handlers.NewAdminDispatchHandler(d.Jobs, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.ChatRateLimit > 0 {
		a.limiter = httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, chatRateBurst)
		routerCfg.ChatLimiter = a.limiter
	}

	waSender, err := bootstrap.BuildWhatsAppSender(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if waSender != nil {
		routerCfg.WhatsApp = whatsapp.NewHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, svc, waSender, logger)
	}

	a.handler = router.New(routerCfg)
	return a, nil
}

// start launches dispatch workers and janitors; they stop when ctx is cancelled.
func (a *app) start(ctx context.Context) {
	a.dispatch.Worker.Start(ctx)
	if a.limiter != nil {
		a.limiter.StartJanitor(ctx)
	}
	if mem, ok := a.sessions.(*session.MemoryStore); ok {
		mem.StartJanitor(ctx, sessionJanitorInterval)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
