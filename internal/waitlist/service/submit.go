package service

import (
	"context"
	"errors"
	"time"

	"waitlist/internal/waitlist/form"
	"waitlist/internal/waitlist/models"
	id "waitlist/pkg/domain"
)

const (
	outcomeDelivered        = "delivered"
	outcomeFailed           = "failed"
	outcomeRejectedInFlight = "rejected_in_flight"
	outcomeInvalid          = "invalid"
)

// Submit validates the last question and delivers the record to the relay.
//
// The in-flight claim is taken and released in two short store updates; the
// relay call runs between them without holding the store lock. A second
// Submit for the same session during that window fails with
// form.ErrSubmissionInFlight. Delivery failures are not returned as errors:
// the session stays on the last question and the result carries a failure
// notification.
func (s *Service) Submit(ctx context.Context, sessionID id.SessionID) (*models.TransitionResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSubmit(start)

	var (
		record    models.AnswerRecord
		res       models.ValidationResult
		claimedAt time.Time
	)
	sess, err := s.mutate(ctx, sessionID, nil, func(sess *models.Session, f *form.Form) error {
		var err error
		record, res, err = f.BeginSubmit()
		if err != nil {
			return err
		}
		if res.Valid {
			claimedAt = s.now()
			sess.SubmitStartedAt = claimedAt
			// The session must outlive the claim so the finish update can
			// still find it after a slow delivery.
			if holdUntil := claimedAt.Add(s.submitLockTTL); sess.ExpiresAt.Before(holdUntil) {
				sess.ExpiresAt = holdUntil
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, form.ErrSubmissionInFlight) {
			s.metrics.IncrementSubmission(outcomeRejectedInFlight)
		}
		return nil, err
	}
	if !res.Valid {
		s.metrics.IncrementSubmission(outcomeInvalid)
		s.metrics.IncrementValidationFailure(s.registry.At(s.registry.PreTerminal()).ID)
		view, err := s.view(sess)
		if err != nil {
			return nil, err
		}
		return &models.TransitionResult{View: view, Validation: &res}, nil
	}

	// The visitor leaving must not abort a delivery already under way, nor
	// leave the claim behind.
	detached := context.WithoutCancel(ctx)
	sendErr := s.relay.Submit(detached, record)

	var note *models.Notification
	notifier := form.NotifierFunc(func(_ context.Context, n models.Notification) {
		note = &n
	})
	var finishErr error
	sess, err = s.mutate(detached, sessionID, notifier, func(sess *models.Session, f *form.Form) error {
		if !sess.SubmitStartedAt.Equal(claimedAt) {
			return errClaimLost
		}
		sess.SubmitStartedAt = time.Time{}
		finishErr = f.FinishSubmit(detached, sendErr)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record submission outcome",
			"session_id", sessionID.String(),
			"delivered", sendErr == nil,
			"error", err,
		)
		return nil, err
	}

	if finishErr != nil {
		s.metrics.IncrementSubmission(outcomeFailed)
	} else {
		s.metrics.IncrementSubmission(outcomeDelivered)
		s.metrics.IncrementStepAdvance(s.registry.At(s.registry.PreTerminal()).ID)
	}

	view, err := s.view(sess)
	if err != nil {
		return nil, err
	}
	return &models.TransitionResult{View: view, Validation: &res, Notification: note}, nil
}
