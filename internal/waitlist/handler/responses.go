package handler

import (
	"time"

	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/validation"
)

// StepsResponse lists the question sequence and the phone regions a renderer
// offers in its region picker.
type StepsResponse struct {
	Steps   []models.StepDefinition `json:"steps"`
	Regions []validation.Region     `json:"regions"`
}

// SessionSnapshot is the renderer's read model of one session.
type SessionSnapshot struct {
	ID               string                `json:"id"`
	CurrentStepIndex int                   `json:"current_step_index"`
	Direction        models.Direction      `json:"direction"`
	LastError        string                `json:"last_error"`
	Step             models.StepDefinition `json:"step"`
	StepCount        int                   `json:"step_count"`
	Progress         int                   `json:"progress"`
	Answers          models.AnswerRecord   `json:"answers"`
	Submitting       bool                  `json:"submitting"`
	Complete         bool                  `json:"complete"`
	ExpiresAt        time.Time             `json:"expires_at"`
}

// SessionResponse wraps a snapshot with the optional outcome of the
// operation that produced it.
type SessionResponse struct {
	Session      SessionSnapshot          `json:"session"`
	Validation   *models.ValidationResult `json:"validation,omitempty"`
	Notification *models.Notification     `json:"notification,omitempty"`
}

func toSnapshot(v *models.SessionView) SessionSnapshot {
	return SessionSnapshot{
		ID:               v.ID.String(),
		CurrentStepIndex: v.Navigation.CurrentStepIndex,
		Direction:        v.Navigation.Direction,
		LastError:        v.Navigation.LastError,
		Step:             v.Step,
		StepCount:        v.StepCount,
		Progress:         v.Progress,
		Answers:          v.Answers,
		Submitting:       v.Submitting,
		Complete:         v.Complete,
		ExpiresAt:        v.ExpiresAt,
	}
}

func toSessionResponse(v *models.SessionView) SessionResponse {
	return SessionResponse{Session: toSnapshot(v)}
}

func toTransitionResponse(res *models.TransitionResult) SessionResponse {
	return SessionResponse{
		Session:      toSnapshot(res.View),
		Validation:   res.Validation,
		Notification: res.Notification,
	}
}
