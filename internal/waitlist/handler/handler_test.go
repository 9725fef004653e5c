package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"waitlist/internal/platform/metrics"
	ratelimit "waitlist/internal/ratelimit/models"
	"waitlist/internal/waitlist/form"
	"waitlist/internal/waitlist/handler/mocks"
	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/steps"
	id "waitlist/pkg/domain"
	dErrors "waitlist/pkg/domain-errors"
	"waitlist/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	router   chi.Router
	registry *steps.Registry
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.registry = steps.Default()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, metrics.New(prometheus.NewRegistry()), time.Second)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) view(sessionID id.SessionID, idx int) *models.SessionView {
	return &models.SessionView{
		ID:         sessionID,
		Step:       s.registry.At(idx),
		StepCount:  s.registry.Len(),
		Progress:   s.registry.Progress(idx),
		Navigation: models.NavigationState{CurrentStepIndex: idx, Direction: models.DirectionForward},
		Complete:   idx == s.registry.Terminal(),
		ExpiresAt:  time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC),
	}
}

func (s *HandlerSuite) TestListSteps() {
	s.service.EXPECT().Steps().Return(s.registry.Steps())

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/waitlist/steps"))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[StepsResponse](s.T(), rr)
	s.Len(resp.Steps, 8)
	s.Equal("first_name", resp.Steps[0].ID)
	s.Equal("Enter your first name", resp.Steps[0].Placeholder)
	s.Equal(models.StepKindTerminal, resp.Steps[7].Kind)
	s.Len(resp.Steps[6].Choices, 5)
	s.NotEmpty(resp.Regions)
	s.Equal("+1", resp.Regions[0].DialCode)
}

func (s *HandlerSuite) TestStartSession() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().Start(gomock.Any()).Return(s.view(sessionID, 0), nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions"))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))

	resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
	s.Equal(sessionID.String(), resp.Session.ID)
	s.Equal(0, resp.Session.CurrentStepIndex)
	s.Equal(models.DirectionForward, resp.Session.Direction)
	s.Equal("What's your first name?", resp.Session.Step.Question)
	s.Equal(0, resp.Session.Progress)
	s.Nil(resp.Notification)
}

func (s *HandlerSuite) TestGetSessionNotFound() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().Get(gomock.Any(), sessionID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "session not found"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/waitlist/sessions/"+sessionID.String()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestMalformedSessionID() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/not-a-uuid/advance"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestEditField() {
	sessionID := id.NewSessionID()
	view := s.view(sessionID, 3)
	view.Answers.RegionCode = "+1"
	view.Answers.Phone = "(555) 123-4567"
	s.service.EXPECT().EditField(gomock.Any(), sessionID, models.FieldPhone, "(555) 123-4567abc").Return(view, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPut,
		"/waitlist/sessions/"+sessionID.String()+"/fields/phone",
		map[string]string{"value": "(555) 123-4567abc"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
	s.Equal("(555) 123-4567", resp.Session.Answers.Phone)
	s.Equal("+1", resp.Session.Answers.RegionCode)
}

func (s *HandlerSuite) TestEditFieldRejections() {
	sessionID := id.NewSessionID().String()

	s.Run("unknown field", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/waitlist/sessions/"+sessionID+"/fields/nickname",
			map[string]string{"value": "x"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
	s.Run("missing value", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/waitlist/sessions/"+sessionID+"/fields/email",
			map[string]string{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPut, "/waitlist/sessions/"+sessionID+"/fields/email", "{")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestAdvanceWithValidationFailure() {
	sessionID := id.NewSessionID()
	view := s.view(sessionID, 2)
	view.Navigation.LastError = "Please enter a valid email address"
	res := models.Fail("Please enter a valid email address")
	s.service.EXPECT().Advance(gomock.Any(), sessionID).
		Return(&models.TransitionResult{View: view, Validation: &res}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/advance"))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
	s.Equal(2, resp.Session.CurrentStepIndex)
	s.Equal("Please enter a valid email address", resp.Session.LastError)
	s.Require().NotNil(resp.Validation)
	s.False(resp.Validation.Valid)
}

func (s *HandlerSuite) TestRetreat() {
	sessionID := id.NewSessionID()
	view := s.view(sessionID, 1)
	view.Navigation.Direction = models.DirectionBackward
	s.service.EXPECT().Retreat(gomock.Any(), sessionID).Return(view, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/retreat"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "session")
}

func (s *HandlerSuite) TestSubmitSuccess() {
	sessionID := id.NewSessionID()
	res := models.Pass()
	note := models.SubmissionSucceeded
	s.service.EXPECT().Submit(gomock.Any(), sessionID).Return(&models.TransitionResult{
		View:         s.view(sessionID, s.registry.Terminal()),
		Validation:   &res,
		Notification: &note,
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/submit"))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
	s.True(resp.Session.Complete)
	s.Equal(100, resp.Session.Progress)
	s.Require().NotNil(resp.Notification)
	s.Equal(models.NotificationSuccess, resp.Notification.Level)
	s.Equal("Success!", resp.Notification.Title)
}

func (s *HandlerSuite) TestSubmitDeliveryFailureIsNotAnHTTPError() {
	sessionID := id.NewSessionID()
	res := models.Pass()
	note := models.SubmissionFailed
	s.service.EXPECT().Submit(gomock.Any(), sessionID).Return(&models.TransitionResult{
		View:         s.view(sessionID, s.registry.PreTerminal()),
		Validation:   &res,
		Notification: &note,
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/submit"))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
	s.False(resp.Session.Complete)
	s.Require().NotNil(resp.Notification)
	s.Equal(models.NotificationError, resp.Notification.Level)
}

func (s *HandlerSuite) TestSubmitInFlight() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().Submit(gomock.Any(), sessionID).Return(nil, form.ErrSubmissionInFlight)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/submit"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *HandlerSuite) TestInternalErrorHidesDescription() {
	s.service.EXPECT().Start(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "redis: connection refused"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/waitlist/sessions"))
	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	s.NotContains(rr.Body.String(), "redis")
}

// classRecorder rejects one endpoint class and records which classes ran.
type classRecorder struct {
	reject ratelimit.EndpointClass
	seen   []ratelimit.EndpointClass
}

func (c *classRecorder) RateLimit(class ratelimit.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.seen = append(c.seen, class)
			if class == c.reject {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TestRoutesUseTheirRateLimitClass(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	limiter := &classRecorder{reject: ratelimit.ClassSubmit}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, metrics.New(prometheus.NewRegistry()), time.Second, WithRateLimiter(limiter))
	router := chi.NewRouter()
	h.Register(router)

	sessionID := id.NewSessionID()
	svc.EXPECT().Retreat(gomock.Any(), sessionID).Return(&models.SessionView{ID: sessionID, Step: steps.Default().At(0)}, nil)
	svc.EXPECT().Steps().Return(steps.Default().Steps())

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/retreat"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/waitlist/sessions/"+sessionID.String()+"/submit"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/waitlist/steps"))
	testutil.AssertStatusOK(t, rr)

	if len(limiter.seen) != 2 || limiter.seen[0] != ratelimit.ClassWrite || limiter.seen[1] != ratelimit.ClassSubmit {
		t.Fatalf("unexpected rate limit classes: %v", limiter.seen)
	}
}
