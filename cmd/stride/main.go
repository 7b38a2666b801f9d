package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/api"
	"github.com/stride-fit/stride/internal/circuitbreaker"
	"github.com/stride-fit/stride/internal/config"
	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/event"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/notify"
	"github.com/stride-fit/stride/internal/observ"
	"github.com/stride-fit/stride/internal/preset"
	"github.com/stride-fit/stride/internal/push"
	"github.com/stride-fit/stride/internal/redis"
	"github.com/stride-fit/stride/internal/schedule"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting stride",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	// Redis for idempotent creates and per-owner rate limiting
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency and rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var idempotencyService *redis.IdempotencyService
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimit,
			Window: time.Duration(cfg.RateLimitWindow) * time.Second,
		})
		defer redisClient.Close()
	}

	// The scheduling core: registry, dispatcher, bootstrapper, all on the
	// wall clock.
	clk := clock.New()
	hub := event.NewHub()
	sched := schedule.NewScheduler(repo, clk, logger)
	defer sched.Stop()

	local := notify.NewLocalChannel(hub, logger)

	// Push transports, each behind its own circuit breaker.
	var transports []push.Transport

	webhookTransport := push.NewWebhookTransport(logger, push.WebhookConfig{
		Timeout: time.Duration(cfg.WebhookTimeout) * time.Second,
	})
	transports = append(transports, circuitbreaker.NewProtectedTransport(
		webhookTransport,
		circuitbreaker.New(circuitbreaker.DefaultConfig("push-webhook"), logger),
		logger,
	))

	snsTransport, err := push.NewSNSTransport(ctx, push.SNSConfig{Region: cfg.SNSRegion}, logger)
	if err != nil {
		logger.Warn("SNS transport unavailable, device push disabled", zap.Error(err))
	} else {
		transports = append(transports, circuitbreaker.NewProtectedTransport(
			snsTransport,
			circuitbreaker.New(circuitbreaker.DefaultConfig("push-sns"), logger),
			logger,
		))
	}

	pushChannel := notify.NewPushChannel(repo, logger, transports...)

	schedule.NewDispatcher(repo, sched, local, pushChannel, clk, logger)

	// Missed one-off notices over SES, best effort.
	missedNotifier, err := notify.NewMissedNotifier(ctx, repo, notify.SESConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, logger)
	if err != nil {
		logger.Warn("SES unavailable, missed reminder notices disabled", zap.Error(err))
	} else {
		sched.OnMissed(missedNotifier.NotifyMissed)
	}

	boot := schedule.NewBootstrapper(repo, sched, logger)
	factory := preset.NewFactory(clk)

	logger.Info("reminder engine initialized",
		zap.Int("push_transports", len(transports)),
		zap.Bool("missed_notices", err == nil),
	)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, repo, sched, boot, factory, hub)
	if idempotencyService != nil {
		handler = handler.WithIdempotency(idempotencyService)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.OwnerKeyFunc))

		r.Post("/reminders", handler.CreateReminder)
		r.Get("/reminders", handler.ListReminders)
		r.Get("/reminders/{id}", handler.GetReminder)
		r.Put("/reminders/{id}", handler.UpdateReminder)
		r.Delete("/reminders/{id}", handler.DeleteReminder)
		r.Post("/reminders/presets", handler.CreatePresets)

		// Session attach point: bootstraps timers, then streams fired
		// reminders until the client disconnects.
		r.Get("/stream", handler.Stream)

		r.Post("/subscriptions", handler.CreateSubscription)
		r.Get("/subscriptions", handler.ListSubscriptions)
		r.Delete("/subscriptions/{id}", handler.DeleteSubscription)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := database.Health(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server. WriteTimeout is zero because of the SSE stream;
	// regular endpoints are still bounded by their handlers.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
