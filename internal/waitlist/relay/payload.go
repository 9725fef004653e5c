package relay

import (
	"strings"

	"waitlist/internal/waitlist/models"
)

const (
	FromName = "Waitlist Form"
	Subject  = "New Waitlist Submission"
)

// Payload is the JSON body accepted by the email relay.
type Payload struct {
	AccessKey string `json:"access_key"`
	FromName  string `json:"from_name"`
	ToEmail   string `json:"to_email,omitempty"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// FormatMessage renders the record as the labeled lines of the email body.
// The phone line is the region code immediately followed by the number.
func FormatMessage(record models.AnswerRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(value))
		b.WriteByte('\n')
	}
	line("First Name", record.FirstName)
	line("Last Name", record.LastName)
	line("Email", record.Email)
	line("Phone", strings.TrimSpace(record.RegionCode)+strings.TrimSpace(record.Phone))
	line("Interest", record.Interest)
	line("Source", record.SourceChoice)
	return strings.TrimSuffix(b.String(), "\n")
}

func buildPayload(record models.AnswerRecord, accessKey, recipient string) Payload {
	return Payload{
		AccessKey: accessKey,
		FromName:  FromName,
		ToEmail:   recipient,
		Subject:   Subject,
		Message:   FormatMessage(record),
	}
}
