package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waitlist/internal/platform/middleware"
	dErrors "waitlist/pkg/domain-errors"
	"waitlist/pkg/platform/httputil"
)

// Registrar is a module that mounts its routes on the root router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig collects what the root router needs. Health checks are keyed
// by the name reported in /healthz.
type RouterConfig struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Health   map[string]HealthChecker
	Modules  []Registrar
}

// NewRouter wires the operational endpoints and mounts every module. Modules
// bring their own middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Group(func(ops chi.Router) {
		ops.Use(middleware.Recovery(cfg.Logger))
		ops.Get("/healthz", healthHandler(cfg.Health))
		ops.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	})
	for _, m := range cfg.Modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		healthy := true
		for name, c := range checks {
			if err := c.Health(ctx); err != nil {
				resp.Checks[name] = err.Error()
				healthy = false
				continue
			}
			resp.Checks[name] = "ok"
		}
		if !healthy {
			resp.Status = "degraded"
			httputil.WriteJSON(w, httputil.ToHTTPStatus(dErrors.CodeUnavailable), resp)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
