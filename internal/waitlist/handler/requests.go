package handler

// EditFieldRequest is the body of PUT /waitlist/sessions/{sessionID}/fields/{field}.
type EditFieldRequest struct {
	Value *string `json:"value"`
}
