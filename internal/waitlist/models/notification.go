package models

// NotificationLevel distinguishes success toasts from failure toasts.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a non-blocking message for the visitor, delivered apart from
// the inline field error.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}

var (
	SubmissionSucceeded = Notification{
		Level:   NotificationSuccess,
		Title:   "Success!",
		Message: "You've been added to the waitlist. We'll be in touch soon!",
	}
	SubmissionFailed = Notification{
		Level:   NotificationError,
		Title:   "Something went wrong",
		Message: "We couldn't add you to the waitlist. Please try again.",
	}
)
