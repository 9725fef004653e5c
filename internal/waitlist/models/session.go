package models

import (
	"time"

	id "waitlist/pkg/domain"
)

// FormState is everything the state machine needs to resume a session.
type FormState struct {
	Answers    AnswerRecord    `json:"answers"`
	Navigation NavigationState `json:"navigation"`
	Submitting bool            `json:"submitting"`
}

// Session is one visitor's pass through the form. It lives only as long as
// ExpiresAt; nothing about it outlives the session.
type Session struct {
	ID              id.SessionID `json:"id"`
	State           FormState    `json:"state"`
	SubmitStartedAt time.Time    `json:"submit_started_at,omitzero"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// NewSession starts a session at the first step.
func NewSession(sessionID id.SessionID, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        sessionID,
		State:     FormState{Navigation: InitialNavigation()},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session has passed its deadline.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SubmitClaimStale reports whether an in-flight submission claim is older than
// maxAge and can be taken over.
func (s *Session) SubmitClaimStale(now time.Time, maxAge time.Duration) bool {
	if !s.State.Submitting || s.SubmitStartedAt.IsZero() {
		return false
	}
	return now.Sub(s.SubmitStartedAt) > maxAge
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
