package waitlist

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	GET(path string) error
	GetStatusCode() int
	GetResponseField(field string) (any, error)
	GetSessionID() string
	SetSessionID(sessionID string)
}

// RegisterSteps registers waitlist form step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &waitlistSteps{tc: tc}

	ctx.Step(`^I start a waitlist session$`, steps.startSession)
	ctx.Step(`^I answer "([^"]*)" with "([^"]*)"$`, steps.answer)
	ctx.Step(`^I continue$`, steps.advance)
	ctx.Step(`^I go back$`, steps.retreat)
	ctx.Step(`^I submit the form$`, steps.submit)
	ctx.Step(`^I fetch the session$`, steps.fetch)
	ctx.Step(`^I request the step definitions$`, steps.listSteps)
	ctx.Step(`^I request the session "([^"]*)"$`, steps.fetchByID)
	ctx.Step(`^I answer every question$`, steps.answerEverything)
	ctx.Step(`^the session should be on step "([^"]*)"$`, steps.sessionShouldBeOnStep)
	ctx.Step(`^the inline error should be "([^"]*)"$`, steps.inlineErrorShouldBe)
	ctx.Step(`^I should see the notification "([^"]*)"$`, steps.notificationShouldBe)
}

type waitlistSteps struct {
	tc TestContext
}

func (s *waitlistSteps) sessionPath(suffix string) string {
	return "/waitlist/sessions/" + s.tc.GetSessionID() + suffix
}

func (s *waitlistSteps) startSession(ctx context.Context) error {
	if err := s.tc.POST("/waitlist/sessions", nil); err != nil {
		return err
	}
	if s.tc.GetStatusCode() != 201 {
		return fmt.Errorf("start session returned %d", s.tc.GetStatusCode())
	}
	sessionID, err := s.tc.GetResponseField("session.id")
	if err != nil {
		return err
	}
	s.tc.SetSessionID(fmt.Sprint(sessionID))
	return nil
}

func (s *waitlistSteps) answer(ctx context.Context, field, value string) error {
	return s.tc.PUT(s.sessionPath("/fields/"+field), map[string]string{"value": value})
}

func (s *waitlistSteps) advance(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/advance"), nil)
}

func (s *waitlistSteps) retreat(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/retreat"), nil)
}

func (s *waitlistSteps) submit(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/submit"), nil)
}

func (s *waitlistSteps) fetch(ctx context.Context) error {
	return s.tc.GET(s.sessionPath(""))
}

func (s *waitlistSteps) fetchByID(ctx context.Context, sessionID string) error {
	return s.tc.GET("/waitlist/sessions/" + sessionID)
}

func (s *waitlistSteps) listSteps(ctx context.Context) error {
	return s.tc.GET("/waitlist/steps")
}

func (s *waitlistSteps) answerEverything(ctx context.Context) error {
	script := []struct {
		field, value string
		advance      bool
	}{
		{"first_name", "Ada", true},
		{"last_name", "Lovelace", true},
		{"email", "ada@example.org", true},
		{"region_code", "+44", false},
		{"phone", "020 7946 0958", true},
		{"interest", "Early access for my team", true},
		{"terms_accepted", "true", false},
		{"source_choice", "referral", false},
	}
	for _, step := range script {
		if err := s.answer(ctx, step.field, step.value); err != nil {
			return err
		}
		if s.tc.GetStatusCode() != 200 {
			return fmt.Errorf("answer %s returned %d", step.field, s.tc.GetStatusCode())
		}
		if !step.advance {
			continue
		}
		if err := s.advance(ctx); err != nil {
			return err
		}
		if msg, _ := s.tc.GetResponseField("session.last_error"); msg != "" {
			return fmt.Errorf("advance after %s failed: %v", step.field, msg)
		}
	}
	return nil
}

func (s *waitlistSteps) sessionShouldBeOnStep(ctx context.Context, stepID string) error {
	got, err := s.tc.GetResponseField("session.step.id")
	if err != nil {
		return err
	}
	if got != stepID {
		return fmt.Errorf("expected step %q, got %v", stepID, got)
	}
	return nil
}

func (s *waitlistSteps) inlineErrorShouldBe(ctx context.Context, want string) error {
	got, err := s.tc.GetResponseField("session.last_error")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected inline error %q, got %v", want, got)
	}
	return nil
}

func (s *waitlistSteps) notificationShouldBe(ctx context.Context, title string) error {
	got, err := s.tc.GetResponseField("notification.title")
	if err != nil {
		return err
	}
	if got != title {
		return fmt.Errorf("expected notification %q, got %v", title, got)
	}
	return nil
}
