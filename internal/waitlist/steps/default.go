package steps

import (
	"waitlist/internal/waitlist/models"
	"waitlist/internal/waitlist/validation"
)

// SourceChoices are the answers to "How did you hear about us?".
var SourceChoices = []models.Choice{
	{Key: "social", Label: "Social Media"},
	{Key: "email", Label: "Email Newsletter"},
	{Key: "referral", Label: "Friend/Family Referral"},
	{Key: "podcast", Label: "Podcast/Video"},
	{Key: "other", Label: "Other"},
}

// Default returns the waitlist question sequence.
func Default() *Registry {
	sourceKeys := make([]string, 0, len(SourceChoices))
	for _, c := range SourceChoices {
		sourceKeys = append(sourceKeys, c.Key)
	}

	return MustNew(
		models.StepDefinition{
			ID:          "first_name",
			Question:    "What's your first name?",
			Placeholder: "Enter your first name",
			Kind:        models.StepKindFreeText,
			Fields:      []models.FieldKey{models.FieldFirstName},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.FirstName(a.FirstName)
			},
		},
		models.StepDefinition{
			ID:          "last_name",
			Question:    "And your last name?",
			Placeholder: "Enter your last name",
			Kind:        models.StepKindFreeText,
			Fields:      []models.FieldKey{models.FieldLastName},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.LastName(a.LastName)
			},
		},
		models.StepDefinition{
			ID:          "email",
			Question:    "What's your email address?",
			Placeholder: "Enter your email",
			Kind:        models.StepKindEmail,
			Fields:      []models.FieldKey{models.FieldEmail},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.Email(a.Email)
			},
		},
		models.StepDefinition{
			ID:          "phone",
			Question:    "What's your phone number?",
			Placeholder: "Enter your phone number",
			Kind:        models.StepKindPhoneWithRegion,
			Fields:      []models.FieldKey{models.FieldRegionCode, models.FieldPhone},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.Phone(a.RegionCode, a.Phone)
			},
		},
		models.StepDefinition{
			ID:          "interest",
			Question:    "Why are you interested in joining this program?",
			Placeholder: "Tell us about your interest...",
			Kind:        models.StepKindMultilineText,
			Fields:      []models.FieldKey{models.FieldInterest},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.Interest(a.Interest)
			},
		},
		models.StepDefinition{
			ID:       "terms",
			Question: "Do you agree to the program terms and conditions?",
			Kind:     models.StepKindAcknowledgement,
			Fields:   []models.FieldKey{models.FieldTermsAccepted},
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.Terms(a.TermsAccepted)
			},
		},
		models.StepDefinition{
			ID:          "source",
			Question:    "How did you hear about us?",
			Placeholder: "Select an option",
			Kind:        models.StepKindSingleChoice,
			Fields:      []models.FieldKey{models.FieldSourceChoice},
			Choices:     SourceChoices,
			Validate: func(a models.AnswerRecord) models.ValidationResult {
				return validation.Source(a.SourceChoice, sourceKeys)
			},
		},
		models.StepDefinition{
			ID:       "success",
			Question: "You're on the waitlist!",
			Kind:     models.StepKindTerminal,
		},
	)
}
