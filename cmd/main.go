package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ankitvars/ai-resume-builder/internal/auth"
	"github.com/ankitvars/ai-resume-builder/internal/config"
	forgotPassword "github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/forgot_password"
	"github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/health"
	resetPassword "github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/reset_password"
	"github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/session"
	"github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/signin"
	"github.com/ankitvars/ai-resume-builder/internal/http_server/handlers/signup"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/lib/resetlink"
	"github.com/ankitvars/ai-resume-builder/internal/middleware/authenticate"
	rateLimit "github.com/ankitvars/ai-resume-builder/internal/middleware/ratelimit"
	"github.com/ankitvars/ai-resume-builder/internal/rabbitmq"
	"github.com/ankitvars/ai-resume-builder/internal/ratelimit"
	"github.com/ankitvars/ai-resume-builder/internal/storage/postgres"
	"github.com/ankitvars/ai-resume-builder/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad(config.FetchConfigPath())

	log := setupLogger(cfg.Env)

	log.Info("starting auth service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	if !cfg.Postgres.SkipMigrations {
		if err := storage.Migrate(ctx); err != nil {
			log.Error("failed to apply migrations", sl.Err(err))
			os.Exit(1)
		}
	}

	counters, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer counters.Close()

	var publisher resetlink.Publisher
	if cfg.RabbitMQ.URL != "" {
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			log.Error("failed to connect rabbitmq", sl.Err(err))
			os.Exit(1)
		}
		defer msgBroker.Close()

		publisher = msgBroker
	} else {
		log.Warn("rabbitmq url is empty, reset links will only be logged")
		publisher = resetlink.NewLogPublisher(log)
	}

	linkSender := resetlink.New(log, publisher, cfg.PasswordReset.LinkBaseURL)

	limiter := ratelimit.New(log, counters, ratelimit.Config{
		Window:      cfg.RateLimit.Window,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		FailOpen:    cfg.RateLimit.FailOpen,
	})

	authService := auth.New(
		log,
		storage,
		storage,
		storage,
		linkSender,
		cfg.Session.Secret,
		cfg.Session.TTL,
		auth.WithResetTokenTTL(cfg.PasswordReset.TokenTTL),
	)

	go runCleanup(ctx, log, authService, cfg.PasswordReset.CleanupInterval)

	router := setupRouter(log, cfg, authService, limiter,
		health.Check{Name: "postgres", Pinger: storage},
		health.Check{Name: "redis", Pinger: counters},
	)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	limiter *ratelimit.Limiter,
	readiness ...health.Check,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rateLimit.Global(cfg.RateLimit.GlobalRequests, cfg.RateLimit.GlobalWindow))

	r.Get("/healthz", health.New(log, readiness...))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(rateLimit.Signup(log, limiter)).Post("/signup",
			signup.New(log, validate, authService),
		)
		r.With(rateLimit.Signin(log, limiter)).Post("/signin",
			signin.New(log, validate, authService),
		)
		r.With(rateLimit.ForgotPassword(log, limiter)).Post("/forgot-password",
			forgotPassword.New(log, validate, authService),
		)
		r.With(rateLimit.ResetPassword(log, limiter)).Post("/reset-password",
			resetPassword.New(log, validate, authService),
		)
		r.With(authenticate.New(log, cfg.Session.Secret)).Get("/session",
			session.New(log, authService),
		)
	})

	return r
}

// * runCleanup periodically removes expired password reset tokens.
func runCleanup(ctx context.Context, log *slog.Logger, authService *auth.Auth, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := authService.CleanupExpiredResetTokens(ctx); err != nil {
				log.Error("failed to clean up reset tokens", sl.Err(err))
			}
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
