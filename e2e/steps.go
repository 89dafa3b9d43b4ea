package e2e

import (
	"github.com/cucumber/godog"

	"persona/e2e/steps/common"
	"persona/e2e/steps/persona"
	"persona/e2e/steps/proof"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register proof submission steps
	proof.RegisterSteps(ctx, tc)

	// Register persona lookup steps
	persona.RegisterSteps(ctx, tc)
}
