package proof

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
}

const (
	twitterProviderID = "e6fe962d-8b4e-4ce5-abcc-3d21c88bd64a"
	githubProviderID  = "8ce3c937-b5d7-4034-8b65-92633011904a"
)

// RegisterSteps registers proof submission and request generation steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &proofSteps{tc: tc}

	ctx.Step(`^I submit a (twitter|github) proof for "([^"]*)" signed by an unknown witness$`, steps.submitForgedProof)
	ctx.Step(`^I submit a (twitter|github) proof for "([^"]*)" without signatures$`, steps.submitUnsignedProof)
	ctx.Step(`^I submit a proof for unknown provider "([^"]*)" and address "([^"]*)"$`, steps.submitUnknownProvider)
	ctx.Step(`^I request a verification link for provider "([^"]*)" and address "([^"]*)"$`, steps.requestLink)
	ctx.Step(`^I request a verification link without parameters$`, steps.requestLinkWithoutParams)
}

type proofSteps struct {
	tc TestContext
}

func providerID(name string) string {
	if name == "github" {
		return githubProviderID
	}
	return twitterProviderID
}

func (s *proofSteps) submitForgedProof(ctx context.Context, provider, address string) error {
	sig := make([]byte, 65)
	if _, err := rand.Read(sig); err != nil {
		return err
	}
	return s.tc.POST("/api/receive-proof", buildProof(providerID(provider), address, []string{"0x" + hex.EncodeToString(sig)}))
}

func (s *proofSteps) submitUnsignedProof(ctx context.Context, provider, address string) error {
	return s.tc.POST("/api/receive-proof", buildProof(providerID(provider), address, nil))
}

func (s *proofSteps) submitUnknownProvider(ctx context.Context, provider, address string) error {
	return s.tc.POST("/api/receive-proof", buildProof(provider, address, nil))
}

func (s *proofSteps) requestLink(ctx context.Context, provider, address string) error {
	q := url.Values{}
	q.Set("providerId", providerID(provider))
	q.Set("userAddress", address)
	return s.tc.GET("/api/generate-request?"+q.Encode(), nil)
}

func (s *proofSteps) requestLinkWithoutParams(ctx context.Context) error {
	return s.tc.GET("/api/generate-request", nil)
}

// buildProof returns a structurally valid proof body. The service cannot
// accept it because no trusted witness signed it.
func buildProof(providerID, address string, signatures []string) map[string]interface{} {
	signedContext, _ := json.Marshal(map[string]interface{}{
		"contextAddress":      address,
		"contextMessage":      "persona verification",
		"extractedParameters": map[string]string{"followers_count": "42", "public_repos": "7"},
	})
	if signatures == nil {
		signatures = []string{}
	}
	return map[string]interface{}{
		"providerId": providerID,
		"context": map[string]string{
			"contextAddress": address,
			"contextMessage": "persona verification",
		},
		"claimData": map[string]interface{}{
			"provider":   "http",
			"parameters": `{"url":"https://example.invalid"}`,
			"owner":      "0x0000000000000000000000000000000000000001",
			"timestampS": time.Now().Unix(),
			"context":    string(signedContext),
			"identifier": fmt.Sprintf("0x%064x", 1),
			"epoch":      1,
		},
		"identifier": fmt.Sprintf("0x%064x", 1),
		"signatures": signatures,
	}
}
