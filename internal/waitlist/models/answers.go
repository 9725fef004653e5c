package models

import (
	"strconv"
	"strings"

	dErrors "waitlist/pkg/domain-errors"
)

// FieldKey names one editable field of an AnswerRecord.
type FieldKey string

const (
	FieldFirstName     FieldKey = "first_name"
	FieldLastName      FieldKey = "last_name"
	FieldEmail         FieldKey = "email"
	FieldPhone         FieldKey = "phone"
	FieldRegionCode    FieldKey = "region_code"
	FieldInterest      FieldKey = "interest"
	FieldSourceChoice  FieldKey = "source_choice"
	FieldTermsAccepted FieldKey = "terms_accepted"
)

var fieldKeys = []FieldKey{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldPhone,
	FieldRegionCode,
	FieldInterest,
	FieldSourceChoice,
	FieldTermsAccepted,
}

// ParseFieldKey validates a field key coming from outside the process.
func ParseFieldKey(s string) (FieldKey, error) {
	key := FieldKey(strings.TrimSpace(s))
	for _, k := range fieldKeys {
		if k == key {
			return key, nil
		}
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown field: "+s)
}

// AnswerRecord accumulates the visitor's answers for one form session.
// String fields hold raw input; validators trim and normalize on read.
type AnswerRecord struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	RegionCode    string `json:"region_code"`
	Interest      string `json:"interest"`
	SourceChoice  string `json:"source_choice"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// Set assigns value to the field named by key. termsAccepted takes a boolean
// literal; phone input keeps only digits, spaces, dashes and parentheses.
func (a *AnswerRecord) Set(key FieldKey, value string) error {
	switch key {
	case FieldFirstName:
		a.FirstName = value
	case FieldLastName:
		a.LastName = value
	case FieldEmail:
		a.Email = value
	case FieldPhone:
		a.Phone = SanitizePhoneInput(value)
	case FieldRegionCode:
		a.RegionCode = strings.TrimSpace(value)
	case FieldInterest:
		a.Interest = value
	case FieldSourceChoice:
		a.SourceChoice = strings.TrimSpace(value)
	case FieldTermsAccepted:
		accepted, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "terms_accepted must be true or false")
		}
		a.TermsAccepted = accepted
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unknown field: "+string(key))
	}
	return nil
}

// Get returns the current value of a field in its string form.
func (a AnswerRecord) Get(key FieldKey) string {
	switch key {
	case FieldFirstName:
		return a.FirstName
	case FieldLastName:
		return a.LastName
	case FieldEmail:
		return a.Email
	case FieldPhone:
		return a.Phone
	case FieldRegionCode:
		return a.RegionCode
	case FieldInterest:
		return a.Interest
	case FieldSourceChoice:
		return a.SourceChoice
	case FieldTermsAccepted:
		return strconv.FormatBool(a.TermsAccepted)
	}
	return ""
}

// SanitizePhoneInput drops everything but digits, spaces, '-', '(' and ')'.
func SanitizePhoneInput(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ' ', r == '-', r == '(', r == ')':
			return r
		}
		return -1
	}, raw)
}
