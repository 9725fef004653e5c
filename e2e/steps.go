package e2e

import (
	"github.com/cucumber/godog"

	"waitlist/e2e/steps/common"
	"waitlist/e2e/steps/waitlist"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	waitlist.RegisterSteps(ctx, tc)
}
