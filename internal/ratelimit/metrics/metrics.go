package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected       *prometheus.CounterVec
	FallbackChecks prometheus.Counter
	CheckErrors    prometheus.Counter
	BreakerOpen    prometheus.Gauge
}

// New registers the rate limit metrics with reg, or the default registry
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_ratelimit_rejected_total",
			Help: "Requests rejected with 429, labeled by endpoint class",
		}, []string{"class"}),
		FallbackChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_ratelimit_fallback_checks_total",
			Help: "Rate limit checks served by the in-memory fallback",
		}),
		CheckErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_ratelimit_check_errors_total",
			Help: "Rate limit checks that failed against the primary store",
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "waitlist_ratelimit_breaker_open",
			Help: "1 while the primary rate limit store is bypassed",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.FallbackChecks.Inc()
}

func (m *Metrics) IncrementCheckErrors() {
	if m == nil {
		return
	}
	m.CheckErrors.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
