package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformmetrics "waitlist/internal/platform/metrics"
	rlmiddleware "waitlist/internal/ratelimit/middleware"
	ratelimit "waitlist/internal/ratelimit/models"
	ratelimitservice "waitlist/internal/ratelimit/service"
	"waitlist/internal/ratelimit/store/bucket"
	"waitlist/internal/waitlist/handler"
	waitlistmetrics "waitlist/internal/waitlist/metrics"
	"waitlist/internal/waitlist/relay"
	"waitlist/internal/waitlist/service"
	"waitlist/internal/waitlist/store"
	"waitlist/pkg/testutil"
)

type failingCheck struct{}

func (failingCheck) Health(context.Context) error { return errors.New("connection refused") }

type okCheck struct{}

func (okCheck) Health(context.Context) error { return nil }

// newStack builds the full waitlist stack on an in-memory store against a
// fake relay that answers with relayStatus.
func newStack(t *testing.T, relayStatus *atomic.Int32, relayBodies chan<- string, opts ...handler.Option) http.Handler {
	t.Helper()
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case relayBodies <- string(body):
		default:
		}
		w.WriteHeader(int(relayStatus.Load()))
	}))
	t.Cleanup(relaySrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	relayClient := relay.New(relay.Config{
		Endpoint:  relaySrv.URL,
		AccessKey: "test-key",
		Timeout:   time.Second,
	}, relay.WithLogger(logger), relay.WithRegisterer(reg))
	svc := service.New(store.NewInMemory(), relayClient,
		service.WithLogger(logger),
		service.WithMetrics(waitlistmetrics.New(reg)),
	)
	h := handler.New(svc, logger, platformmetrics.New(reg), time.Second, opts...)

	return NewRouter(RouterConfig{
		Logger:   logger,
		Gatherer: reg,
		Health:   map[string]HealthChecker{"store": okCheck{}},
		Modules:  []Registrar{h},
	})
}

func do(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, handler.SessionResponse) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, path, body)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	rr := testutil.DoRequest(router, req)
	var resp handler.SessionResponse
	if rr.Code < 300 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func fill(t *testing.T, router http.Handler, sessionID string) {
	t.Helper()
	base := "/waitlist/sessions/" + sessionID
	answers := []struct {
		field, value string
		advance      bool
	}{
		{"first_name", "Ada", true},
		{"last_name", "Lovelace", true},
		{"email", "ada@example.org", true},
		{"region_code", "+1", false},
		{"phone", "(555) 123-4567", true},
		{"interest", "Early access", true},
		{"terms_accepted", "true", false},
		{"source_choice", "podcast", false},
	}
	for _, a := range answers {
		rr, _ := do(t, router, http.MethodPut, base+"/fields/"+a.field, map[string]string{"value": a.value})
		require.Equal(t, http.StatusOK, rr.Code, "edit %s: %s", a.field, rr.Body.String())
		if a.advance {
			_, resp := do(t, router, http.MethodPost, base+"/advance", nil)
			require.NotNil(t, resp.Validation)
			require.True(t, resp.Validation.Valid, "advance after %s: %s", a.field, resp.Validation.Message)
		}
	}
}

func TestWaitlistSignupFlow(t *testing.T) {
	testutil.Given(t, "a waitlist server whose relay accepts submissions", func(t *testing.T) {
		var status atomic.Int32
		status.Store(http.StatusOK)
		bodies := make(chan string, 4)
		router := newStack(t, &status, bodies)

		rr, started := do(t, router, http.MethodPost, "/waitlist/sessions", nil)
		require.Equal(t, http.StatusCreated, rr.Code)
		sessionID := started.Session.ID

		testutil.When(t, "advancing with an empty first name", func(t *testing.T) {
			_, resp := do(t, router, http.MethodPost, "/waitlist/sessions/"+sessionID+"/advance", nil)

			testutil.Then(t, "the session stays put with an inline error", func(t *testing.T) {
				assert.Equal(t, 0, resp.Session.CurrentStepIndex)
				assert.Equal(t, "Please enter your first name", resp.Session.LastError)
			})
		})

		testutil.When(t, "every question is answered and submitted", func(t *testing.T) {
			fill(t, router, sessionID)
			_, before := do(t, router, http.MethodGet, "/waitlist/sessions/"+sessionID, nil)
			rr, resp := do(t, router, http.MethodPost, "/waitlist/sessions/"+sessionID+"/submit", nil)

			testutil.Then(t, "the visitor sees success", func(t *testing.T) {
				assert.Equal(t, 6, before.Session.CurrentStepIndex)
				require.Equal(t, http.StatusOK, rr.Code)
				require.NotNil(t, resp.Notification)
				assert.Equal(t, "Success!", resp.Notification.Title)
				assert.True(t, resp.Session.Complete)
				assert.Equal(t, 100, resp.Session.Progress)
			})

			testutil.And(t, "the relay receives the formatted record", func(t *testing.T) {
				body := <-bodies
				assert.Contains(t, body, `"access_key":"test-key"`)
				assert.Contains(t, body, "Phone: +1(555) 123-4567")
				assert.Contains(t, body, "Source: podcast")
			})
		})

		testutil.When(t, "editing after completion", func(t *testing.T) {
			rr, _ := do(t, router, http.MethodPut, "/waitlist/sessions/"+sessionID+"/fields/first_name", map[string]string{"value": "Again"})

			testutil.Then(t, "the edit is refused", func(t *testing.T) {
				assert.Equal(t, http.StatusConflict, rr.Code)
			})
		})
	})

	testutil.Given(t, "a relay that rejects submissions", func(t *testing.T) {
		var status atomic.Int32
		status.Store(http.StatusInternalServerError)
		router := newStack(t, &status, make(chan string, 4))

		_, started := do(t, router, http.MethodPost, "/waitlist/sessions", nil)
		sessionID := started.Session.ID
		fill(t, router, sessionID)

		testutil.When(t, "submitting", func(t *testing.T) {
			rr, resp := do(t, router, http.MethodPost, "/waitlist/sessions/"+sessionID+"/submit", nil)

			testutil.Then(t, "the failure notification is returned and answers are kept", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				require.NotNil(t, resp.Notification)
				assert.Equal(t, "Something went wrong", resp.Notification.Title)
				assert.Equal(t, 6, resp.Session.CurrentStepIndex)
				assert.Equal(t, "Ada", resp.Session.Answers.FirstName)
			})
		})
	})
}

func TestHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(RouterConfig{Logger: logger, Health: map[string]HealthChecker{"redis": okCheck{}}})
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	router = NewRouter(RouterConfig{Logger: logger, Health: map[string]HealthChecker{"redis": failingCheck{}}})
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	router := newStack(t, &status, make(chan string, 1))

	do(t, router, http.MethodPost, "/waitlist/sessions", nil)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

	testutil.AssertStatusOK(t, rr)
	out := rr.Body.String()
	assert.True(t, strings.Contains(out, "waitlist_sessions_started_total 1"), out)
	assert.Contains(t, out, `waitlist_http_requests_total{method="POST",route="/waitlist/sessions",status="201"} 1`)
}

func TestSessionStartsAreRateLimitedPerIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter, err := ratelimitservice.New(bucket.NewInMemory(), map[ratelimit.EndpointClass]ratelimit.Limit{
		ratelimit.ClassStart:  {RequestsPerWindow: 2, Window: time.Minute},
		ratelimit.ClassWrite:  {RequestsPerWindow: 100, Window: time.Minute},
		ratelimit.ClassSubmit: {RequestsPerWindow: 1, Window: time.Minute},
	}, ratelimitservice.WithLogger(logger))
	require.NoError(t, err)

	var status atomic.Int32
	status.Store(http.StatusOK)
	router := newStack(t, &status, make(chan string, 1),
		handler.WithRateLimiter(rlmiddleware.New(limiter, logger)))

	start := func(ip string) *httptest.ResponseRecorder {
		req := testutil.NewRequest(t, http.MethodPost, "/waitlist/sessions")
		req.RemoteAddr = ip + ":40000"
		return testutil.DoRequest(router, req)
	}

	testutil.Given(t, "a visitor who already started two sessions", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, start("198.51.100.4").Code)
		rr := start("198.51.100.4")
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

		testutil.When(t, "starting a third", func(t *testing.T) {
			rr := start("198.51.100.4")

			testutil.Then(t, "the request is refused with a retry hint", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
				testutil.AssertJSONContains(t, rr, "error", "rate_limit_exceeded")
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
			})
		})

		testutil.When(t, "the same peer claims a different forwarded address", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/waitlist/sessions")
			req.RemoteAddr = "198.51.100.4:40001"
			req.Header.Set("X-Forwarded-For", "203.0.113.77")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the header is ignored and the peer budget applies", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
			})
		})

		testutil.When(t, "another address starts a session", func(t *testing.T) {
			rr := start("198.51.100.5")

			testutil.Then(t, "it has its own budget", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
			})
		})
	})
}
