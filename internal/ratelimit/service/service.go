package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waitlist/internal/ratelimit/metrics"
	"waitlist/internal/ratelimit/models"
	dErrors "waitlist/pkg/domain-errors"
	"waitlist/pkg/platform/circuit"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks BucketStore

// BucketStore counts requests in a sliding window per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Limiter checks per-IP budgets for each endpoint class. When a fallback
// store is configured, a breaker moves checks onto it after repeated primary
// failures and back once the primary answers again.
type Limiter struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

func WithFallback(store BucketStore) Option {
	return func(l *Limiter) {
		l.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		l.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New requires a positive limit for every endpoint class.
func New(primary BucketStore, limits map[models.EndpointClass]models.Limit, opts ...Option) (*Limiter, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary bucket store is required")
	}
	for _, class := range []models.EndpointClass{models.ClassStart, models.ClassWrite, models.ClassSubmit} {
		lim, ok := limits[class]
		if !ok || lim.RequestsPerWindow <= 0 || lim.Window <= 0 {
			return nil, fmt.Errorf("rate limit for class %q must be positive", class)
		}
	}
	l := &Limiter{
		primary: primary,
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.breaker == nil {
		l.breaker = circuit.New("ratelimit")
	}
	return l, nil
}

// CheckIP records one request from ip against class. Errors mean no store
// could answer and the caller decides whether to fail open.
func (l *Limiter) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	lim, ok := l.limits[class]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown endpoint class %q", class))
	}
	key := models.NewIPRateLimitKey(ip, class)

	res, err := l.primary.Allow(ctx, key, lim.RequestsPerWindow, lim.Window)
	if err != nil {
		l.metrics.IncrementCheckErrors()
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store failing, switching to fallback",
				"breaker", l.breaker.Name(),
				"error", err.Error(),
			)
			l.metrics.SetBreakerOpen(true)
		}
		if !useFallback || l.fallback == nil {
			return nil, fmt.Errorf("check rate limit: %w", err)
		}
		return l.checkFallback(ctx, key, lim)
	}

	usePrimary, change := l.breaker.RecordSuccess()
	if change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered", "breaker", l.breaker.Name())
		l.metrics.SetBreakerOpen(false)
	}
	if !usePrimary && l.fallback != nil {
		return l.checkFallback(ctx, key, lim)
	}
	return res, nil
}

// Degraded reports whether checks are currently served by the fallback.
func (l *Limiter) Degraded() bool {
	return l.fallback != nil && l.breaker.IsOpen()
}

func (l *Limiter) checkFallback(ctx context.Context, key string, lim models.Limit) (*models.RateLimitResult, error) {
	l.metrics.IncrementFallback()
	res, err := l.fallback.Allow(ctx, key, lim.RequestsPerWindow, lim.Window)
	if err != nil {
		return nil, fmt.Errorf("check fallback rate limit: %w", err)
	}
	return res, nil
}
