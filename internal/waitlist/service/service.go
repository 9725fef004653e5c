package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"waitlist/internal/waitlist/form"
	"waitlist/internal/waitlist/metrics"
	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/steps"
	id "waitlist/pkg/domain"
	dErrors "waitlist/pkg/domain-errors"
	"waitlist/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Store Relay

// Store persists live sessions. Update must serialize concurrent updates of
// one session and only store the session if fn returns nil.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Update(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// Relay delivers a completed record to the email relay.
type Relay interface {
	Submit(ctx context.Context, record models.AnswerRecord) error
}

var errClaimLost = dErrors.New(dErrors.CodeConflict, "submission claim was taken over")

const (
	defaultSessionTTL    = 2 * time.Hour
	defaultSubmitLockTTL = time.Minute
)

// Service runs waitlist form sessions on behalf of the presentation layer. It
// restores a form.Form from the store for every operation, so any instance
// sharing the store can serve any session.
type Service struct {
	store         Store
	relay         Relay
	registry      *steps.Registry
	logger        *slog.Logger
	metrics       *metrics.Metrics
	sessionTTL    time.Duration
	submitLockTTL time.Duration
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRegistry(r *steps.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithSessionTTL sets how long a session lives after it starts.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSubmitLockTTL sets the age after which an in-flight submission claim is
// considered abandoned, e.g. because the instance holding it died.
func WithSubmitLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.submitLockTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(store Store, relay Relay, opts ...Option) *Service {
	s := &Service{
		store:         store,
		relay:         relay,
		registry:      steps.Default(),
		logger:        slog.Default(),
		sessionTTL:    defaultSessionTTL,
		submitLockTTL: defaultSubmitLockTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Steps returns the question sequence for renderers.
func (s *Service) Steps() []models.StepDefinition {
	return s.registry.Steps()
}

// Start opens a new session at the first step.
func (s *Service) Start(ctx context.Context) (*models.SessionView, error) {
	sess := models.NewSession(id.NewSessionID(), s.now(), s.sessionTTL)
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, s.translate(err, "failed to start session")
	}
	s.metrics.IncrementSessionsStarted()
	s.logger.InfoContext(ctx, "waitlist session started", "session_id", sess.ID.String())
	return s.view(sess)
}

// Get returns the current state of a session.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.SessionView, error) {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.translate(err, "failed to load session")
	}
	return s.view(sess)
}

// EditField records one answer and clears the inline error. Accepting the
// terms on the acknowledgement step also moves the session forward.
func (s *Service) EditField(ctx context.Context, sessionID id.SessionID, key models.FieldKey, value string) (*models.SessionView, error) {
	var (
		from  models.StepDefinition
		moved bool
	)
	sess, err := s.mutate(ctx, sessionID, nil, func(_ *models.Session, f *form.Form) error {
		from = f.CurrentStep()
		if err := f.EditField(key, value); err != nil {
			return err
		}
		moved = f.Navigation().CurrentStepIndex != from.Index
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		s.metrics.IncrementStepAdvance(from.ID)
	}
	return s.view(sess)
}

// Advance validates the current step and moves forward if it passes.
func (s *Service) Advance(ctx context.Context, sessionID id.SessionID) (*models.TransitionResult, error) {
	var (
		res   models.ValidationResult
		from  models.StepDefinition
		moved bool
	)
	sess, err := s.mutate(ctx, sessionID, nil, func(_ *models.Session, f *form.Form) error {
		from = f.CurrentStep()
		var err error
		res, err = f.Advance()
		if err != nil {
			return err
		}
		moved = f.Navigation().CurrentStepIndex != from.Index
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordValidation(from, res, moved)
	view, err := s.view(sess)
	if err != nil {
		return nil, err
	}
	return &models.TransitionResult{View: view, Validation: &res}, nil
}

// Retreat moves back one step without validating.
func (s *Service) Retreat(ctx context.Context, sessionID id.SessionID) (*models.SessionView, error) {
	sess, err := s.mutate(ctx, sessionID, nil, func(_ *models.Session, f *form.Form) error {
		return f.Retreat()
	})
	if err != nil {
		return nil, err
	}
	return s.view(sess)
}

func (s *Service) recordValidation(step models.StepDefinition, res models.ValidationResult, moved bool) {
	if !res.Valid {
		s.metrics.IncrementValidationFailure(step.ID)
		return
	}
	if moved {
		s.metrics.IncrementStepAdvance(step.ID)
	}
}

// mutate restores the session's form inside a store update, applies fn, and
// writes the resulting state back. Stores may run fn more than once, so fn
// only captures values; side effects belong after mutate returns. An abandoned submission claim is released
// before fn runs.
func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, notifier form.Notifier, fn func(*models.Session, *form.Form) error) (*models.Session, error) {
	sess, err := s.store.Update(ctx, sessionID, func(sess *models.Session) error {
		now := s.now()
		if sess.IsExpired(now) {
			return sentinel.ErrNotFound
		}
		if sess.SubmitClaimStale(now, s.submitLockTTL) {
			s.logger.WarnContext(ctx, "releasing abandoned submission claim",
				"session_id", sess.ID.String(),
				"claimed_at", sess.SubmitStartedAt,
			)
			sess.State.Submitting = false
			sess.SubmitStartedAt = time.Time{}
		}
		f, err := form.Restore(s.registry, s.relay, sess.State,
			form.WithLogger(s.logger.With("session_id", sess.ID.String())),
			form.WithNotifier(notifier),
		)
		if err != nil {
			return err
		}
		if err := fn(sess, f); err != nil {
			return err
		}
		sess.State = f.State()
		sess.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to update session")
	}
	return sess, nil
}

func (s *Service) view(sess *models.Session) (*models.SessionView, error) {
	idx := sess.State.Navigation.CurrentStepIndex
	if idx < 0 || idx >= s.registry.Len() {
		return nil, dErrors.New(dErrors.CodeInternal, "session is on an unknown step")
	}
	return &models.SessionView{
		ID:         sess.ID,
		Step:       s.registry.At(idx),
		StepCount:  s.registry.Len(),
		Progress:   s.registry.Progress(idx),
		Navigation: sess.State.Navigation,
		Answers:    sess.State.Answers,
		Submitting: sess.State.Submitting,
		Complete:   idx == s.registry.Terminal(),
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// translate maps store sentinels to domain errors and passes domain errors
// through unchanged.
func (s *Service) translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "session was modified concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
