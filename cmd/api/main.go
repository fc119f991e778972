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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/advisor"
	"github.com/smartfriend/mortgage-advisor/internal/config"
	"github.com/smartfriend/mortgage-advisor/internal/events"
	"github.com/smartfriend/mortgage-advisor/internal/handler"
	"github.com/smartfriend/mortgage-advisor/internal/lead"
	"github.com/smartfriend/mortgage-advisor/internal/llm"
	"github.com/smartfriend/mortgage-advisor/internal/middleware"
	"github.com/smartfriend/mortgage-advisor/internal/session"
	"github.com/smartfriend/mortgage-advisor/internal/tool"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
	"github.com/smartfriend/mortgage-advisor/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "mortgage-advisor", cfg.TracingEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracing.Shutdown(shutdownCtx, tp)
		}()
	}

	var publisher events.Publisher
	var natsPub *events.NATSPublisher
	if cfg.NATSURL != "" {
		natsPub, err = events.ConnectNATS(ctx, cfg.NATSURL, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		publisher = natsPub
		log.Info("lead event publisher connected", zap.String("url", cfg.NATSURL))
	} else {
		publisher = events.NewNoopPublisher()
		log.Info("NATS_URL not set, lead events disabled")
	}
	defer publisher.Close()

	client, err := llm.NewClient(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}
	log.Info("llm provider ready",
		zap.String("provider", client.Name()),
		zap.String("model", cfg.LLMModel))

	sessions := session.NewMemoryStore()
	registry := tool.NewRegistry()
	leads := lead.NewFileStore(cfg.LeadsFile)

	adv := advisor.New(sessions, registry, client, publisher, log, advisor.Options{
		Model:         cfg.LLMModel,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   float64(cfg.Temperature),
		MaxToolRounds: cfg.MaxToolRounds,
		LeadThreshold: cfg.LeadThreshold,
	})

	chatHandler := handler.NewChatHandler(sessions, adv, log)
	leadHandler := handler.NewLeadHandler(leads, sessions, log)

	readiness := map[string]handler.ReadinessChecker{}
	if natsPub != nil {
		readiness["nats"] = natsPub.IsConnected
	}
	healthHandler := handler.NewHealthHandler(readiness)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/sessions", chatHandler.CreateSession)
		r.Post("/chat", chatHandler.Chat)
		r.Post("/leads", leadHandler.Capture)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireScope("leads:read"))
			r.Get("/leads", leadHandler.List)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
