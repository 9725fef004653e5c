package models

import (
	"time"

	id "waitlist/pkg/domain"
)

// SessionView is the read side handed to the presentation layer.
type SessionView struct {
	ID         id.SessionID
	Step       StepDefinition
	StepCount  int
	Progress   int
	Navigation NavigationState
	Answers    AnswerRecord
	Submitting bool
	Complete   bool
	ExpiresAt  time.Time
}

// TransitionResult is the outcome of an operation that may validate or notify.
// Validation is nil when no validation ran; Notification is nil unless a
// submission finished.
type TransitionResult struct {
	View         *SessionView
	Validation   *ValidationResult
	Notification *Notification
}
