// Package form implements the step-sequencing state machine of one waitlist
// session: which question is shown, whether the visitor may move on, and how
// the final submission is handed to the relay.
//
// A Form is driven by a single visitor. Its methods are safe to call from
// several goroutines, but the network call made by Submit runs without the
// lock held, so a second Submit during that call is rejected with
// ErrSubmissionInFlight instead of queueing.
package form

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/steps"
	dErrors "waitlist/pkg/domain-errors"
)

var (
	ErrSubmissionInFlight = dErrors.New(dErrors.CodeConflict, "a submission is already in progress")
	ErrSubmissionFailed   = dErrors.New(dErrors.CodeUnavailable, "submission failed")
	ErrNotReady           = dErrors.New(dErrors.CodeInvalidState, "submission is only possible from the last question")
	ErrCompleted          = dErrors.New(dErrors.CodeInvalidState, "the form has already been submitted")
)

// Submitter delivers a completed record. Any error counts as a failed
// submission; the form does not classify them.
type Submitter interface {
	Submit(ctx context.Context, record models.AnswerRecord) error
}

// Notifier receives the non-blocking messages that are shown apart from the
// inline field error.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n models.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n models.Notification) {
	f(ctx, n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Notification) {}

// Form holds the answers and navigation state of one session.
type Form struct {
	registry  *steps.Registry
	submitter Submitter
	notifier  Notifier
	logger    *slog.Logger

	mu         sync.Mutex
	answers    models.AnswerRecord
	nav        models.NavigationState
	submitting bool
}

type Option func(*Form)

func WithNotifier(n Notifier) Option {
	return func(f *Form) {
		if n != nil {
			f.notifier = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New starts a fresh form at the first step.
func New(registry *steps.Registry, submitter Submitter, opts ...Option) *Form {
	f := &Form{
		registry:  registry,
		submitter: submitter,
		notifier:  nopNotifier{},
		logger:    slog.Default(),
		nav:       models.InitialNavigation(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Restore resumes a form from a stored state.
func Restore(registry *steps.Registry, submitter Submitter, state models.FormState, opts ...Option) (*Form, error) {
	idx := state.Navigation.CurrentStepIndex
	if idx < 0 || idx >= registry.Len() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("step index %d out of range", idx))
	}
	f := New(registry, submitter, opts...)
	f.answers = state.Answers
	f.nav = state.Navigation
	if f.nav.Direction == "" {
		f.nav.Direction = models.DirectionForward
	}
	f.submitting = state.Submitting
	return f, nil
}

// State returns a copy of everything needed to resume the form.
func (f *Form) State() models.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.FormState{Answers: f.answers, Navigation: f.nav, Submitting: f.submitting}
}

func (f *Form) Answers() models.AnswerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers
}

func (f *Form) Navigation() models.NavigationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nav
}

// CurrentStep returns the definition of the step being shown.
func (f *Form) CurrentStep() models.StepDefinition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry.At(f.nav.CurrentStepIndex)
}

// Progress is the completion percentage for the progress bar.
func (f *Form) Progress() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry.Progress(f.nav.CurrentStepIndex)
}

// IsComplete reports whether the success screen has been reached.
func (f *Form) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeLocked()
}

func (f *Form) completeLocked() bool {
	return f.nav.CurrentStepIndex == f.registry.Terminal()
}

func (f *Form) checkMutableLocked() error {
	if f.completeLocked() {
		return ErrCompleted
	}
	if f.submitting {
		return ErrSubmissionInFlight
	}
	return nil
}
