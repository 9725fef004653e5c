package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"waitlist/internal/ratelimit/metrics"
	"waitlist/internal/ratelimit/models"
	"waitlist/internal/ratelimit/service/mocks"
	"waitlist/internal/ratelimit/store/bucket"
	"waitlist/pkg/platform/circuit"
)

var testLimits = map[models.EndpointClass]models.Limit{
	models.ClassStart:  {RequestsPerWindow: 2, Window: time.Minute},
	models.ClassWrite:  {RequestsPerWindow: 50, Window: time.Minute},
	models.ClassSubmit: {RequestsPerWindow: 1, Window: time.Minute},
}

var errRedisDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

type LimiterSuite struct {
	suite.Suite
	primary *mocks.MockBucketStore
	metrics *metrics.Metrics
	limiter *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.primary = mocks.NewMockBucketStore(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	l, err := New(s.primary, testLimits,
		WithFallback(bucket.NewInMemory()),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.limiter = l
}

func (s *LimiterSuite) TestPrimaryAnswers() {
	want := &models.RateLimitResult{Allowed: true, Limit: 2, Remaining: 1}
	s.primary.EXPECT().Allow(gomock.Any(), "ip:10.0.0.1:start", 2, time.Minute).Return(want, nil)

	res, err := s.limiter.CheckIP(context.Background(), "10.0.0.1", models.ClassStart)
	s.Require().NoError(err)
	s.Same(want, res)
	s.False(s.limiter.Degraded())
}

func (s *LimiterSuite) TestFailsBeforeBreakerOpens() {
	s.primary.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRedisDown)

	_, err := s.limiter.CheckIP(context.Background(), "10.0.0.1", models.ClassSubmit)
	s.ErrorIs(err, errRedisDown)
	s.False(s.limiter.Degraded())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.CheckErrors))
}

func (s *LimiterSuite) TestFallbackEnforcesLimitWhileOpen() {
	ctx := context.Background()
	s.primary.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRedisDown).Times(3)

	_, err := s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassSubmit)
	s.Require().Error(err)

	res, err := s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassSubmit)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.True(s.limiter.Degraded())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.BreakerOpen))

	res, err = s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassSubmit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(2.0, promtest.ToFloat64(s.metrics.FallbackChecks))
}

func (s *LimiterSuite) TestRecoversWhenPrimaryAnswers() {
	ctx := context.Background()
	want := &models.RateLimitResult{Allowed: true, Limit: 50, Remaining: 49}
	gomock.InOrder(
		s.primary.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRedisDown).Times(2),
		s.primary.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(want, nil),
	)

	_, _ = s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassWrite)
	_, _ = s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassWrite)
	s.Require().True(s.limiter.Degraded())

	res, err := s.limiter.CheckIP(ctx, "10.0.0.1", models.ClassWrite)
	s.Require().NoError(err)
	s.Same(want, res)
	s.False(s.limiter.Degraded())
	s.Equal(0.0, promtest.ToFloat64(s.metrics.BreakerOpen))
}

func (s *LimiterSuite) TestUnknownClass() {
	_, err := s.limiter.CheckIP(context.Background(), "10.0.0.1", models.EndpointClass("admin"))
	s.Error(err)
}

func TestNewRejectsMissingLimits(t *testing.T) {
	_, err := New(bucket.NewInMemory(), map[models.EndpointClass]models.Limit{
		models.ClassStart: {RequestsPerWindow: 1, Window: time.Minute},
	})
	if err == nil {
		t.Fatal("expected error for missing class limits")
	}
}
