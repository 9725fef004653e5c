package models

import (
	"fmt"
	"time"
)

// EndpointClass groups waitlist endpoints that share a request budget.
type EndpointClass string

const (
	// ClassStart covers session creation.
	ClassStart EndpointClass = "start"
	// ClassWrite covers edits and navigation on an existing session.
	ClassWrite EndpointClass = "write"
	// ClassSubmit covers submission, which reaches the email relay.
	ClassSubmit EndpointClass = "submit"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassStart, ClassWrite, ClassSubmit:
		return true
	}
	return false
}

// Limit is a request budget per sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// NewIPRateLimitKey builds the bucket key for a client IP and class.
func NewIPRateLimitKey(ip string, class EndpointClass) string {
	return fmt.Sprintf("ip:%s:%s", ip, class)
}
