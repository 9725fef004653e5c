package form

import (
	"context"
	"fmt"

	"waitlist/internal/waitlist/models"
)

// EditField records a value and clears the inline error. The step does not
// change, except that accepting the terms while the acknowledgement step is
// shown advances immediately, as if Advance had been called.
func (f *Form) EditField(key models.FieldKey, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMutableLocked(); err != nil {
		return err
	}
	wasAccepted := f.answers.TermsAccepted
	if err := f.answers.Set(key, value); err != nil {
		return err
	}
	f.nav.LastError = ""

	current := f.registry.At(f.nav.CurrentStepIndex)
	if key == models.FieldTermsAccepted &&
		current.Kind == models.StepKindAcknowledgement &&
		!wasAccepted && f.answers.TermsAccepted {
		f.advanceLocked()
	}
	return nil
}

// Advance validates the current step and moves forward when it passes. On
// failure the message is kept as the inline error and nothing else changes.
//
// The success screen is only reachable through Submit: a passing Advance on
// the last question leaves the index where it is.
func (f *Form) Advance() (models.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMutableLocked(); err != nil {
		return models.ValidationResult{}, err
	}
	return f.advanceLocked(), nil
}

func (f *Form) advanceLocked() models.ValidationResult {
	idx := f.nav.CurrentStepIndex
	res := f.registry.Validate(idx, f.answers)
	if !res.Valid {
		f.nav.LastError = res.Message
		f.logger.Debug("step validation failed",
			"step", f.registry.At(idx).ID,
			"message", res.Message,
		)
		return res
	}
	f.nav.LastError = ""
	if idx < f.registry.PreTerminal() {
		f.nav.Direction = models.DirectionForward
		f.nav.CurrentStepIndex = idx + 1
	}
	return res
}

// Retreat moves back one step without validating. It is a no-op on the first
// step.
func (f *Form) Retreat() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMutableLocked(); err != nil {
		return err
	}
	if f.nav.CurrentStepIndex == 0 {
		return nil
	}
	f.nav.LastError = ""
	f.nav.Direction = models.DirectionBackward
	f.nav.CurrentStepIndex--
	return nil
}

// Submit validates the last question and hands the record to the Submitter.
// An invalid answer behaves like a failed Advance and returns the result with
// a nil error. A delivery failure leaves the step unchanged, emits a failure
// notification and returns ErrSubmissionFailed; the inline error is untouched.
func (f *Form) Submit(ctx context.Context) (models.ValidationResult, error) {
	record, res, err := f.BeginSubmit()
	if err != nil || !res.Valid {
		return res, err
	}
	sendErr := f.submitter.Submit(ctx, record)
	return res, f.FinishSubmit(ctx, sendErr)
}

// BeginSubmit claims the in-flight guard after validating the last question.
// On success the caller owns the claim and must call FinishSubmit once the
// delivery attempt is over.
func (f *Form) BeginSubmit() (models.AnswerRecord, models.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMutableLocked(); err != nil {
		return models.AnswerRecord{}, models.ValidationResult{}, err
	}
	if f.nav.CurrentStepIndex != f.registry.PreTerminal() {
		return models.AnswerRecord{}, models.ValidationResult{}, ErrNotReady
	}
	res := f.advanceLocked()
	if !res.Valid {
		return models.AnswerRecord{}, res, nil
	}
	f.submitting = true
	return f.answers, res, nil
}

// FinishSubmit releases the in-flight guard and applies the outcome of the
// delivery attempt started by BeginSubmit.
func (f *Form) FinishSubmit(ctx context.Context, sendErr error) error {
	f.mu.Lock()
	if !f.submitting {
		f.mu.Unlock()
		return ErrNotReady
	}
	f.submitting = false

	if sendErr != nil {
		f.mu.Unlock()
		f.logger.WarnContext(ctx, "waitlist submission failed", "error", sendErr)
		f.notifier.Notify(ctx, models.SubmissionFailed)
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, sendErr)
	}

	f.nav.CurrentStepIndex = f.registry.Terminal()
	f.nav.Direction = models.DirectionForward
	f.nav.LastError = ""
	f.answers = models.AnswerRecord{}
	f.mu.Unlock()

	f.logger.InfoContext(ctx, "waitlist submission delivered")
	f.notifier.Notify(ctx, models.SubmissionSucceeded)
	return nil
}
