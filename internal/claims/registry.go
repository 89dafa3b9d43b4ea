// Package claims maps verified proofs to namespaced attribute records, one
// extractor per provider.
package claims

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"persona/internal/persona"
	"persona/internal/proof"
)

// Extractor turns a provider's extracted parameters into its attribute record.
// Implementations must be pure: same input, same record.
type Extractor interface {
	Namespace() string
	Extract(params map[string]string, verifiedAt time.Time) (persona.AttributeRecord, error)
}

// Registry dispatches by provider ID. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byProvider map[string]Extractor
	namespaces map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byProvider: make(map[string]Extractor),
		namespaces: make(map[string]string),
	}
}

// NewDefaultRegistry registers the built-in providers under the given IDs.
func NewDefaultRegistry(twitterID, githubID string) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(twitterID, Twitter{}); err != nil {
		return nil, err
	}
	if err := r.Register(githubID, GitHub{}); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds an extractor. Provider IDs and namespaces must be unique.
func (r *Registry) Register(providerID string, e Extractor) error {
	if providerID == "" {
		return errors.New("provider ID is required")
	}
	if e == nil {
		return errors.New("extractor is required")
	}
	ns := e.Namespace()
	if ns == "" || ns == persona.LastUpdatedKey {
		return fmt.Errorf("namespace %q is reserved or empty", ns)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byProvider[providerID]; exists {
		return fmt.Errorf("provider %q already registered", providerID)
	}
	if owner, exists := r.namespaces[ns]; exists {
		return fmt.Errorf("namespace %q already owned by provider %q", ns, owner)
	}
	r.byProvider[providerID] = e
	r.namespaces[ns] = providerID
	return nil
}

// Providers lists registered provider IDs in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byProvider))
	for id := range r.byProvider {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Supports reports whether providerID has an extractor.
func (r *Registry) Supports(providerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byProvider[providerID]
	return ok
}

// Extract builds the attribute record for p. verifiedAt is the claim's signed
// timestamp so repeated extraction of one proof is deterministic.
func (r *Registry) Extract(providerID string, p *proof.Proof) (persona.AttributeRecord, error) {
	r.mu.RLock()
	e, ok := r.byProvider[providerID]
	r.mu.RUnlock()
	if !ok {
		return persona.AttributeRecord{}, &UnsupportedProviderError{ProviderID: providerID}
	}
	if p == nil {
		return persona.AttributeRecord{}, &MalformedClaimError{ProviderID: providerID, Reason: "proof is empty"}
	}
	if p.ClaimData.TimestampS <= 0 {
		return persona.AttributeRecord{}, &MalformedClaimError{ProviderID: providerID, Field: "timestampS", Reason: "is missing"}
	}
	verifiedAt := time.Unix(p.ClaimData.TimestampS, 0).UTC()

	rec, err := e.Extract(p.Parameters(), verifiedAt)
	if err != nil {
		var malformed *MalformedClaimError
		if errors.As(err, &malformed) && malformed.ProviderID == "" {
			malformed.ProviderID = providerID
		}
		return persona.AttributeRecord{}, err
	}
	return rec, nil
}
