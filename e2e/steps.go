package e2e

import (
	"github.com/cucumber/godog"

	"checkin/e2e/steps/checkin"
	"checkin/e2e/steps/common"
	"checkin/e2e/steps/sync"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (terminal reset, connectivity, assertions)
	common.RegisterSteps(ctx, tc)

	// Register session steps
	checkin.RegisterSteps(ctx, tc)

	// Register offline queue steps
	sync.RegisterSteps(ctx, tc)
}
