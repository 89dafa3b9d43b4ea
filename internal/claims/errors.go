package claims

import "fmt"

// UnsupportedProviderError reports a provider ID with no registered extractor.
type UnsupportedProviderError struct {
	ProviderID string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q", e.ProviderID)
}

// MalformedClaimError reports a well-formed proof whose parameters do not fit
// the provider's schema.
type MalformedClaimError struct {
	ProviderID string
	Field      string
	Reason     string
}

func (e *MalformedClaimError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed claim for provider %q: %s", e.ProviderID, e.Reason)
	}
	return fmt.Sprintf("malformed claim for provider %q: field %q %s", e.ProviderID, e.Field, e.Reason)
}
