// Package ratelimit implements the fixed-window gate in front of sensitive
// auth actions. State lives entirely in the counter store; a Limiter is safe
// for concurrent use as long as its Counter is.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
)

const (
	DefaultWindow      = 10 * time.Minute
	DefaultMaxAttempts = 5
)

var ErrUnavailable = errors.New("rate limit store unavailable")

// Counter is a shared store with an atomic increment-and-expire.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

type Config struct {
	Window      time.Duration
	MaxAttempts int
	// FailOpen lets requests through when the counter store errors.
	FailOpen bool
}

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r Result) RetryAfterSeconds() int64 {
	return int64((r.RetryAfter + time.Second - 1) / time.Second)
}

type Limiter struct {
	log     *slog.Logger
	counter Counter
	cfg     Config
}

func New(log *slog.Logger, counter Counter, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	return &Limiter{
		log:     log,
		counter: counter,
		cfg:     cfg,
	}
}

// Key composes the counter key for an action performed by a client.
func Key(action, client string) string {
	return action + ":" + client
}

// Allow consumes one attempt for key. The attempt stays consumed whatever the
// caller does afterwards.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	const op = "ratelimit.Allow"

	count, ttl, err := l.counter.IncrWindow(ctx, key, l.cfg.Window)
	if err != nil {
		if l.cfg.FailOpen {
			l.log.Warn("rate limit store unavailable, failing open",
				slog.String("op", op),
				slog.String("key", key),
				sl.Err(err),
			)
			return Result{Allowed: true}, nil
		}

		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	if count <= int64(l.cfg.MaxAttempts) {
		return Result{Allowed: true}, nil
	}

	if ttl < time.Second {
		ttl = time.Second
	}

	l.log.Info("rate limited",
		slog.String("op", op),
		slog.String("key", key),
		slog.Int64("count", count),
	)

	return Result{Allowed: false, RetryAfter: ttl}, nil
}
