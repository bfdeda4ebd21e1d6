package rateLimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "github.com/ankitvars/ai-resume-builder/internal/lib/api/response"
	"github.com/ankitvars/ai-resume-builder/internal/lib/clientip"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/ratelimit"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
)

const (
	ActionSignup         = "signup"
	ActionSignin         = "signin"
	ActionForgotPassword = "forgot-password"
	ActionResetPassword  = "reset-password"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

func Signup(log *slog.Logger, l Limiter) func(http.Handler) http.Handler {
	return limitAction(log, l, ActionSignup)
}

func Signin(log *slog.Logger, l Limiter) func(http.Handler) http.Handler {
	return limitAction(log, l, ActionSignin)
}

func ForgotPassword(log *slog.Logger, l Limiter) func(http.Handler) http.Handler {
	return limitAction(log, l, ActionForgotPassword)
}

func ResetPassword(log *slog.Logger, l Limiter) func(http.Handler) http.Handler {
	return limitAction(log, l, ActionResetPassword)
}

// Global is a coarse in-process flood guard keyed by the same client
// identifier as the per-action gates.
func Global(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientip.FromRequest(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := globalRetryAfter(w.Header(), window, time.Now())

			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, resp.RateLimited(retryAfter))
		}),
	)
}

// globalRetryAfter reads the window end httprate put in X-RateLimit-Reset and
// returns the seconds left, at least 1.
func globalRetryAfter(h http.Header, window time.Duration, now time.Time) int64 {
	reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return max(int64(window/time.Second), 1)
	}

	return max(reset-now.Unix(), 1)
}

func limitAction(log *slog.Logger, l Limiter, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.rateLimit"

			log := log.With(
				slog.String("op", op),
				slog.String("action", action),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			res, err := l.Allow(r.Context(), ratelimit.Key(action, clientip.FromRequest(r)))
			if err != nil {
				log.Error("rate limiter failed", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			if !res.Allowed {
				retryAfter := res.RetryAfterSeconds()

				log.Warn("too many requests", slog.Int64("retry_after", retryAfter))

				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.RateLimited(retryAfter))

				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
