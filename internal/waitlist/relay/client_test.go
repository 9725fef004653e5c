package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitlist/internal/waitlist/models"
)

func sampleRecord() models.AnswerRecord {
	return models.AnswerRecord{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.org",
		Phone:         "(555) 123-4567",
		RegionCode:    "+1",
		Interest:      "Analytical engines",
		SourceChoice:  "podcast",
		TermsAccepted: true,
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	return New(Config{
		Endpoint:  endpoint,
		AccessKey: "test-access-key",
		Recipient: "team@example.org",
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestSubmit_PostsPayload(t *testing.T) {
	var got Payload
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Email sent successfully!"}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Submit(context.Background(), sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "test-access-key", got.AccessKey)
	assert.Equal(t, "Waitlist Form", got.FromName)
	assert.Equal(t, "team@example.org", got.ToEmail)
	assert.Equal(t, "New Waitlist Submission", got.Subject)
	assert.Equal(t, "First Name: Ada\n"+
		"Last Name: Lovelace\n"+
		"Email: ada@example.org\n"+
		"Phone: +1(555) 123-4567\n"+
		"Interest: Analytical engines\n"+
		"Source: podcast", got.Message)
}

func TestSubmit_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).Submit(context.Background(), sampleRecord())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSubmission)
			assert.Equal(t, int32(1), calls.Load(), "no retry")
		})
	}
}

func TestSubmit_RecordsLatencyOnInjectedRegistry(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := New(Config{Endpoint: srv.URL, AccessKey: "k"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegisterer(reg),
	)
	require.NoError(t, c.Submit(context.Background(), sampleRecord()))
	status = http.StatusBadGateway
	require.Error(t, c.Submit(context.Background(), sampleRecord()))

	assert.Equal(t, 2, promtest.CollectAndCount(reg, "waitlist_relay_request_duration_seconds"))

	// a second client on its own registry does not collide
	other := New(Config{Endpoint: srv.URL, AccessKey: "k"}, WithRegisterer(prometheus.NewRegistry()))
	assert.NotNil(t, other)
}

func TestSubmit_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newTestClient(t, url).Submit(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestSubmit_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestClient(t, srv.URL).Submit(ctx, sampleRecord())
	assert.ErrorIs(t, err, ErrSubmission)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_DefaultEndpoint(t *testing.T) {
	c := New(Config{AccessKey: "k"})
	assert.Equal(t, DefaultEndpoint, c.cfg.Endpoint)
}
