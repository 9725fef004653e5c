// Package relay delivers completed waitlist records to the third-party email
// relay. It makes exactly one POST per submission and reports any non-2xx
// status or transport failure as ErrSubmission.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"waitlist/internal/waitlist/models"
)

// DefaultEndpoint is the public submit URL of the relay service.
const DefaultEndpoint = "https://api.web3forms.com/submit"

// maxDrainBytes bounds how much of a relay response is read before closing.
const maxDrainBytes = 64 << 10

var ErrSubmission = errors.New("relay submission failed")


// Config is the fixed relay destination and credential.
type Config struct {
	Endpoint  string
	AccessKey string
	Recipient string
	Timeout   time.Duration
}

// Client posts waitlist records to the relay.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   *prometheus.HistogramVec
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to route through a test server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithRegisterer records relay latency by outcome on reg. Without it the
// client records no metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg == nil {
			return
		}
		c.duration = promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waitlist_relay_request_duration_seconds",
			Help:    "Latency of email relay submissions by outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"})
	}
}

// New builds a relay client. An empty endpoint means DefaultEndpoint.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
		tracer:     otel.Tracer("waitlist/relay"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends the record once. There is no retry; callers surface failures to
// the visitor, who may try again.
func (c *Client) Submit(ctx context.Context, record models.AnswerRecord) (err error) {
	ctx, span := c.tracer.Start(ctx, "relay.Submit", trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, "relay submission failed")
		}
		if c.duration != nil {
			c.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		}
		span.End()
	}()

	body, err := json.Marshal(buildPayload(record, c.cfg.AccessKey, c.cfg.Recipient))
	if err != nil {
		return fmt.Errorf("%w: encode payload: %w", ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	defer resp.Body.Close()
	drained, _ := io.ReadAll(io.LimitReader(resp.Body, maxDrainBytes))

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "relay responded",
		"status", resp.StatusCode,
		"body", string(drained),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrSubmission, resp.StatusCode)
	}
	return nil
}
