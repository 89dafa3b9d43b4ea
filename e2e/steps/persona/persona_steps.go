package persona

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers persona lookup steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &personaSteps{tc: tc}

	ctx.Step(`^I look up the persona of "([^"]*)"$`, steps.lookUp)
	ctx.Step(`^the persona should not exist$`, steps.shouldNotExist)
}

type personaSteps struct {
	tc TestContext
}

func (s *personaSteps) lookUp(ctx context.Context, address string) error {
	return s.tc.GET("/api/personas/"+url.PathEscape(address), nil)
}

func (s *personaSteps) shouldNotExist(ctx context.Context) error {
	if got := s.tc.GetLastResponseStatus(); got != 404 {
		return fmt.Errorf("expected persona to be missing, got status %d: %s", got, string(s.tc.GetLastResponseBody()))
	}
	return nil
}
