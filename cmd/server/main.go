package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"waitlist/internal/platform/config"
	"waitlist/internal/platform/httpserver"
	"waitlist/internal/platform/logger"
	platformmetrics "waitlist/internal/platform/metrics"
	"waitlist/internal/platform/redis"
	ratelimitmetrics "waitlist/internal/ratelimit/metrics"
	rlmiddleware "waitlist/internal/ratelimit/middleware"
	ratelimit "waitlist/internal/ratelimit/models"
	ratelimitservice "waitlist/internal/ratelimit/service"
	"waitlist/internal/ratelimit/store/bucket"
	httptransport "waitlist/internal/transport/http"
	"waitlist/internal/waitlist/handler"
	waitlistmetrics "waitlist/internal/waitlist/metrics"
	"waitlist/internal/waitlist/relay"
	"waitlist/internal/waitlist/service"
	"waitlist/internal/waitlist/store"
	"waitlist/pkg/platform/circuit"
	"waitlist/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("waitlist server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	health := map[string]httptransport.HealthChecker{}
	g, ctx := errgroup.WithContext(ctx)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	var sessions service.Store
	if redisClient != nil {
		defer redisClient.Close()
		sessions = store.NewRedis(redisClient.Client, store.WithRegisterer(prometheus.DefaultRegisterer))
		health["redis"] = redisClient
		log.Info("using redis session store")
	} else {
		mem := store.NewInMemory()
		sessions = mem
		g.Go(func() error {
			sweepExpired(ctx, mem, cfg.Session.SweepInterval, log)
			return nil
		})
		log.Info("using in-memory session store")
	}

	relayClient := relay.New(relay.Config{
		Endpoint:  cfg.Relay.Endpoint,
		AccessKey: cfg.Relay.AccessKey,
		Recipient: cfg.Relay.Recipient,
		Timeout:   cfg.Relay.Timeout,
	}, relay.WithLogger(log), relay.WithRegisterer(prometheus.DefaultRegisterer))

	svc := service.New(sessions, relayClient,
		service.WithLogger(log),
		service.WithMetrics(waitlistmetrics.New(prometheus.DefaultRegisterer)),
		service.WithSessionTTL(cfg.Session.TTL),
		service.WithSubmitLockTTL(cfg.Session.SubmitLockTTL),
	)
	limiter, err := newRateLimiter(ctx, g, cfg, redisClient, log)
	if err != nil {
		return err
	}
	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	waitlistHandler := handler.New(svc, log, platformmetrics.New(prometheus.DefaultRegisterer), cfg.RequestTimeout,
		handler.WithRateLimiter(limiter),
		handler.WithTrustedProxies(proxies),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Gatherer: prometheus.DefaultGatherer,
		Health:   health,
		Modules:  []httptransport.Registrar{waitlistHandler},
	})
	srv := httpserver.New(cfg, router)

	g.Go(func() error {
		log.Info("starting waitlist server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down waitlist server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newRateLimiter keeps buckets in Redis when it is configured, with an
// in-memory fallback behind a breaker. Without Redis the memory store is the
// only store.
func newRateLimiter(ctx context.Context, g *errgroup.Group, cfg config.Server, redisClient *redis.Client, log *slog.Logger) (*rlmiddleware.Middleware, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return rlmiddleware.New(nil, log, rlmiddleware.WithDisabled(true)), nil
	}
	m := ratelimitmetrics.New(prometheus.DefaultRegisterer)
	mem := bucket.NewInMemory()
	g.Go(func() error {
		ticker := time.NewTicker(rl.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				mem.Sweep()
			}
		}
	})

	limits := map[ratelimit.EndpointClass]ratelimit.Limit{
		ratelimit.ClassStart:  {RequestsPerWindow: rl.StartPerWindow, Window: rl.Window},
		ratelimit.ClassWrite:  {RequestsPerWindow: rl.WritePerWindow, Window: rl.Window},
		ratelimit.ClassSubmit: {RequestsPerWindow: rl.SubmitPerWindow, Window: rl.Window},
	}
	opts := []ratelimitservice.Option{
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(m),
	}
	var primary ratelimitservice.BucketStore = mem
	if redisClient != nil {
		primary = bucket.NewRedis(redisClient.Client)
		opts = append(opts,
			ratelimitservice.WithFallback(mem),
			ratelimitservice.WithBreaker(circuit.New("ratelimit-redis",
				circuit.WithFailureThreshold(rl.FailureThreshold),
				circuit.WithSuccessThreshold(rl.SuccessThreshold),
			)),
		)
	}

	limiter, err := ratelimitservice.New(primary, limits, opts...)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return rlmiddleware.New(limiter, log, rlmiddleware.WithMetrics(m)), nil
}

// sweepExpired drops expired in-memory sessions until ctx ends. Redis expires
// its keys on its own.
func sweepExpired(ctx context.Context, mem *store.InMemory, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := mem.DeleteExpired(ctx)
			if err != nil {
				log.WarnContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.DebugContext(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
