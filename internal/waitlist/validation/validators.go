// Package validation holds the per-field checks run before a step transition.
// Every function is pure: it reads its arguments and returns a fresh result.
package validation

import (
	"regexp"
	"slices"
	"strings"

	"waitlist/internal/waitlist/models"
)

const (
	MsgFirstNameRequired = "Please enter your first name"
	MsgLastNameRequired  = "Please enter your last name"
	MsgEmailRequired     = "Please enter your email address"
	MsgEmailInvalid      = "Please enter a valid email address"
	MsgAreaCodeInvalid   = "Please select a valid area code"
	MsgPhoneRequired     = "Please enter your phone number"
	MsgInterestRequired  = "Please tell us why you're interested"
	MsgTermsRequired     = "Please accept the terms to continue"
	MsgSourceRequired    = "Please select how you heard about us"
	MsgSourceUnknown     = "Please select one of the listed options"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func required(value, msg string) models.ValidationResult {
	if strings.TrimSpace(value) == "" {
		return models.Fail(msg)
	}
	return models.Pass()
}

func FirstName(value string) models.ValidationResult {
	return required(value, MsgFirstNameRequired)
}

func LastName(value string) models.ValidationResult {
	return required(value, MsgLastNameRequired)
}

// Email accepts local@domain.tld shapes without whitespace.
func Email(value string) models.ValidationResult {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.Fail(MsgEmailRequired)
	}
	if !emailPattern.MatchString(value) {
		return models.Fail(MsgEmailInvalid)
	}
	return models.Pass()
}

// Digits strips everything but ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phone checks a raw number against the rule of the region the token
// resolves to.
func Phone(regionToken, raw string) models.ValidationResult {
	if strings.TrimSpace(regionToken) == "" {
		return models.Fail(MsgAreaCodeInvalid)
	}
	if strings.TrimSpace(raw) == "" {
		return models.Fail(MsgPhoneRequired)
	}
	region, ok := ResolveRegion(regionToken)
	if !ok {
		return models.Fail(MsgAreaCodeInvalid)
	}
	if !region.Accepts(Digits(raw)) {
		return models.Fail(region.Message)
	}
	return models.Pass()
}

func Interest(value string) models.ValidationResult {
	return required(value, MsgInterestRequired)
}

func Terms(accepted bool) models.ValidationResult {
	if !accepted {
		return models.Fail(MsgTermsRequired)
	}
	return models.Pass()
}

// Source requires a recorded choice. When allowed is non-empty the choice must
// also be one of its keys.
func Source(choice string, allowed []string) models.ValidationResult {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return models.Fail(MsgSourceRequired)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, choice) {
		return models.Fail(MsgSourceUnknown)
	}
	return models.Pass()
}
