package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"waitlist/internal/platform/metrics"
	"waitlist/internal/platform/middleware"
	ratelimit "waitlist/internal/ratelimit/models"
	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/validation"
	id "waitlist/pkg/domain"
	dErrors "waitlist/pkg/domain-errors"
	"waitlist/pkg/platform/httputil"
	"waitlist/pkg/platform/middleware/metadata"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service defines the session operations the waitlist API exposes.
type Service interface {
	Steps() []models.StepDefinition
	Start(ctx context.Context) (*models.SessionView, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.SessionView, error)
	EditField(ctx context.Context, sessionID id.SessionID, key models.FieldKey, value string) (*models.SessionView, error)
	Advance(ctx context.Context, sessionID id.SessionID) (*models.TransitionResult, error)
	Retreat(ctx context.Context, sessionID id.SessionID) (*models.SessionView, error)
	Submit(ctx context.Context, sessionID id.SessionID) (*models.TransitionResult, error)
}

// RateLimiter wraps a route in the per-IP budget of its endpoint class.
type RateLimiter interface {
	RateLimit(class ratelimit.EndpointClass) func(http.Handler) http.Handler
}

const maxBodyBytes = 16 << 10

// Handler serves the waitlist form API.
type Handler struct {
	logger         *slog.Logger
	waitlist       Service
	metrics        *metrics.Metrics
	limiter        RateLimiter
	proxies        metadata.TrustedProxies
	requestTimeout time.Duration
}

type Option func(*Handler)

// WithRateLimiter limits session starts, edits and submissions per client IP.
func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithTrustedProxies lets these peers report the client address through
// X-Forwarded-For or X-Real-IP. Without it the peer address is the client.
func WithTrustedProxies(tp metadata.TrustedProxies) Option {
	return func(h *Handler) {
		h.proxies = tp
	}
}

// New creates a new waitlist Handler.
func New(waitlist Service, logger *slog.Logger, metrics *metrics.Metrics, requestTimeout time.Duration, opts ...Option) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	h := &Handler{
		logger:         logger,
		waitlist:       waitlist,
		metrics:        metrics,
		requestTimeout: requestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the waitlist routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	waitlistRouter := chi.NewRouter()
	waitlistRouter.Use(middleware.Recovery(h.logger))
	waitlistRouter.Use(middleware.RequestID)
	waitlistRouter.Use(metadata.ClientMetadata(h.proxies))
	waitlistRouter.Use(middleware.Logger(h.logger))
	waitlistRouter.Use(middleware.Timeout(h.requestTimeout))
	waitlistRouter.Use(middleware.ContentTypeJSON)
	waitlistRouter.Use(middleware.LatencyMiddleware(h.metrics))

	waitlistRouter.Get("/steps", h.handleListSteps)
	waitlistRouter.With(h.limit(ratelimit.ClassStart)).Post("/sessions", h.handleStartSession)
	waitlistRouter.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Group(func(wr chi.Router) {
			wr.Use(h.limit(ratelimit.ClassWrite))
			wr.Put("/fields/{field}", h.handleEditField)
			wr.Post("/advance", h.handleAdvance)
			wr.Post("/retreat", h.handleRetreat)
		})
		sr.With(h.limit(ratelimit.ClassSubmit)).Post("/submit", h.handleSubmit)
	})

	r.Mount("/waitlist", waitlistRouter)
}

func (h *Handler) limit(class ratelimit.EndpointClass) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.RateLimit(class)
}

func (h *Handler) handleListSteps(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StepsResponse{
		Steps:   h.waitlist.Steps(),
		Regions: validation.Regions(),
	})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.waitlist.Start(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to start session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(view))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.waitlist.Get(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) handleEditField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	key, err := models.ParseFieldKey(chi.URLParam(r, "field"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req EditFieldRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid edit field request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Value == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "value is required"))
		return
	}

	view, err := h.waitlist.EditField(ctx, sessionID, key, *req.Value)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to edit field", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	res, err := h.waitlist.Advance(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to advance session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.waitlist.Retreat(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to retreat session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(view))
}

// handleSubmit answers 200 for delivery failures too; the failure travels in
// the notification and the session stays on the last question.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	res, err := h.waitlist.Submit(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to submit session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

// writeServiceError logs at warn for client-caused errors and at error for
// everything else, then writes the mapped response.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	status := httputil.ToHTTPStatus(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err.Error())
	}
	httputil.WriteError(w, err)
}
