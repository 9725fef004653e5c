package models

// ValidationResult is produced fresh on every validation attempt.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Pass is the result of a successful check.
func Pass() ValidationResult {
	return ValidationResult{Valid: true}
}

// Fail is the result of a failed check with a user-facing message.
func Fail(msg string) ValidationResult {
	return ValidationResult{Valid: false, Message: msg}
}
