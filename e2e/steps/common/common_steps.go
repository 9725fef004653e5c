package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetStatusCode() int
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers generic request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the waitlist server is running$`, steps.serverIsRunning)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.responseFieldShouldBeNumber)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.responseFieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should not be empty$`, steps.responseFieldShouldNotBeEmpty)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serverIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	if s.tc.GetStatusCode() != 200 {
		return fmt.Errorf("health check returned %d", s.tc.GetStatusCode())
	}
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.GetStatusCode(); got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("expected %s to be %q, got %v", field, want, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeNumber(ctx context.Context, field string, want int) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := got.(float64)
	if !ok || int(n) != want {
		return fmt.Errorf("expected %s to be %d, got %v", field, want, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeBool(ctx context.Context, field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("expected %s to be %s, got %v", field, want, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldNotBeEmpty(ctx context.Context, field string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	switch v := got.(type) {
	case nil:
		return fmt.Errorf("expected %s to be set", field)
	case string:
		if v == "" {
			return fmt.Errorf("expected %s to be non-empty", field)
		}
	case []any:
		if len(v) == 0 {
			return fmt.Errorf("expected %s to be non-empty", field)
		}
	}
	return nil
}
