// Package proof models witness-signed claims returned by the proving service
// and verifies their authenticity.
package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Proof is the body POSTed to the callback endpoint.
type Proof struct {
	ProviderID               string            `json:"providerId"`
	Context                  Context           `json:"context"`
	ClaimData                ClaimData         `json:"claimData"`
	Identifier               string            `json:"identifier"`
	Signatures               []string          `json:"signatures"`
	Witnesses                []Witness         `json:"witnesses,omitempty"`
	ExtractedParameterValues map[string]string `json:"extractedParameterValues,omitempty"`
}

// Context is the identity binding the proof was requested for.
type Context struct {
	ContextAddress string `json:"contextAddress"`
	ContextMessage string `json:"contextMessage,omitempty"`
}

type Witness struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// ClaimData is the signed claim. Context is the signed context string; it
// arrives either as a JSON-encoded string or as an inline object.
type ClaimData struct {
	Provider   string       `json:"provider"`
	Parameters string       `json:"parameters"`
	Owner      string       `json:"owner"`
	TimestampS int64        `json:"timestampS"`
	Context    ClaimContext `json:"context"`
	Identifier string       `json:"identifier"`
	Epoch      int64        `json:"epoch"`
}

// ClaimContext keeps the raw signed string alongside the decoded fields.
type ClaimContext struct {
	Raw                 string
	ContextAddress      string
	ContextMessage      string
	ExtractedParameters map[string]string
	ProviderHash        string
}

type claimContextFields struct {
	ContextAddress      string                     `json:"contextAddress"`
	ContextMessage      string                     `json:"contextMessage"`
	ExtractedParameters map[string]json.RawMessage `json:"extractedParameters"`
	ProviderHash        string                     `json:"providerHash"`
}

var ErrMalformedContext = errors.New("malformed claim context")

func (c *ClaimContext) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = ClaimContext{}
		return nil
	}

	raw := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedContext, err)
		}
	}

	out := ClaimContext{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		*c = out
		return nil
	}

	var fields claimContextFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedContext, err)
	}
	out.ContextAddress = fields.ContextAddress
	out.ContextMessage = fields.ContextMessage
	out.ProviderHash = fields.ProviderHash
	if len(fields.ExtractedParameters) > 0 {
		out.ExtractedParameters = make(map[string]string, len(fields.ExtractedParameters))
		for k, v := range fields.ExtractedParameters {
			out.ExtractedParameters[k] = scalarString(v)
		}
	}
	*c = out
	return nil
}

// MarshalJSON emits the raw signed string so a re-encoded proof still verifies.
func (c ClaimContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Raw)
}

// scalarString renders a JSON scalar as the string the provider meant:
// strings unquoted, numbers and booleans verbatim.
func scalarString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(v))
}

// BoundAddress is the identity the witnesses signed the claim for. The
// top-level context is unsigned and never consulted.
func (p *Proof) BoundAddress() string {
	return strings.TrimSpace(p.ClaimData.Context.ContextAddress)
}

// Parameters returns the provider parameters from the signed claim context.
// The top-level extractedParameterValues copy is ignored.
func (p *Proof) Parameters() map[string]string {
	out := make(map[string]string, len(p.ClaimData.Context.ExtractedParameters))
	for k, v := range p.ClaimData.Context.ExtractedParameters {
		out[k] = v
	}
	return out
}

// Verifier decides whether a proof is authentic.
type Verifier interface {
	Verify(ctx context.Context, p *Proof) error
}
