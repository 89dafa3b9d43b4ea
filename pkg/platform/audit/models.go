package audit

import (
	"context"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to a user's persona document.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected proofs and other signals worth alerting on.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the verification pipeline and the request endpoint.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         string
	Category   EventCategory
	Timestamp  time.Time
	UserKey    string
	Action     string
	ProviderID string
	Namespace  string
	Outcome    string
	Reason     string
	TxHash     string
	Replayed   bool
	RequestID  string
	ClientIP   string
	UserAgent  string
}

type AuditEvent string

const (
	EventPersonaUpdated      AuditEvent = "persona_updated"
	EventProofReplayed       AuditEvent = "proof_replayed"
	EventProofRejected       AuditEvent = "proof_rejected"
	EventPersonaWriteFailed  AuditEvent = "persona_write_failed"
	EventVerificationRequest AuditEvent = "verification_requested"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPersonaUpdated:      CategoryCompliance,
	EventProofRejected:       CategorySecurity,
	EventPersonaWriteFailed:  CategoryOperations,
	EventProofReplayed:       CategoryOperations,
	EventVerificationRequest: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Store persists audit events and can list them back per user.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userKey string) ([]Event, error)
}

// Sink is a write-only destination such as a message stream.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// DescribeAgent condenses a raw User-Agent header into "browser/version (os)"
// or "bot:<name>". Empty input stays empty.
func DescribeAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	desc := name
	if version != "" {
		desc += "/" + version
	}
	if os := ua.OS(); os != "" {
		desc += " (" + os + ")"
	}
	if desc == "" {
		return raw
	}
	return desc
}
