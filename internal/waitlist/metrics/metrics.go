package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for waitlist sessions: how far visitors get,
// where validation stops them, and how submissions end.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	StepAdvances       *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	SubmitDuration     prometheus.Histogram
}

// New creates and registers the waitlist metrics with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_sessions_started_total",
			Help: "Total number of waitlist form sessions started",
		}),
		StepAdvances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_step_advances_total",
			Help: "Successful forward transitions, labeled by the step left",
		}, []string{"step"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_validation_failures_total",
			Help: "Blocked transitions, labeled by the step that failed validation",
		}, []string{"step"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_submissions_total",
			Help: "Submission attempts by outcome (delivered, failed, rejected_in_flight)",
		}, []string{"outcome"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "waitlist_submit_duration_seconds",
			Help:    "Duration of the submit operation including the relay call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementSessionsStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) IncrementStepAdvance(step string) {
	if m == nil {
		return
	}
	m.StepAdvances.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementValidationFailure(step string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveSubmit records the duration of a submit call started at start.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}
