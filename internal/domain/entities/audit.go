package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActorType identifies who (or what) performed an audited action.
type ActorType string

const (
	ActorUser      ActorType = "USER"
	ActorSystem    ActorType = "SYSTEM"
	ActorWebhook   ActorType = "WEBHOOK"
	ActorAdmin     ActorType = "ADMIN"
	ActorAnonymous ActorType = "ANONYMOUS"
)

// EventType enumerates the audit events this module emits directly. Callers
// may log additional event types through the same Service; these are the
// ones the security core itself produces.
type EventType string

const (
	EventSessionCreated   EventType = "security.session.created"
	EventSessionRevoked   EventType = "security.session.revoked"
	EventSessionRejected  EventType = "security.session.rejected"
	EventRoleChanged      EventType = "authz.role.changed"
	EventMemberAdded      EventType = "authz.member.added"
	EventMemberRemoved    EventType = "authz.member.removed"
	EventTeamBoundary     EventType = "authz.team_boundary.denied"
	EventRoleDenied       EventType = "authz.role.denied"
	EventIdempotencyHit   EventType = "idempotency.cache_hit"
	EventIdempotencyLock  EventType = "idempotency.locked"
	EventPaymentCreated   EventType = "payment.created"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentCancelled EventType = "payment.cancelled"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventWebhookAccepted  EventType = "webhook.accepted"
	EventWebhookDuplicate EventType = "webhook.duplicate"
	EventWebhookRejected  EventType = "webhook.rejected"
	EventAccountLocked    EventType = "security.account.locked"
)

// AuditEntry is an append-only, HMAC-signed record of a security-relevant
// event. Entries are never updated or deleted by business operations; only
// the retention job removes rows older than the retention window.
type AuditEntry struct {
	ID             uuid.UUID              `json:"id" db:"id"`
	EventType      EventType              `json:"event_type" db:"event_type"`
	ActorID        *uuid.UUID             `json:"actor_id,omitempty" db:"actor_id"`
	ActorType      ActorType              `json:"actor_type" db:"actor_type"`
	ResourceType   string                 `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID     *uuid.UUID             `json:"resource_id,omitempty" db:"resource_id"`
	Action         string                 `json:"action" db:"action"`
	Details        map[string]interface{} `json:"details,omitempty" db:"details"`
	IPAddress      string                 `json:"ip,omitempty" db:"ip_address"`
	UserAgent      string                 `json:"ua,omitempty" db:"user_agent"`
	RequestID      string                 `json:"request_id,omitempty" db:"request_id"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	PrevSignature  string                 `json:"prev_signature,omitempty" db:"prev_signature"`
	HMACSignature  string                 `json:"hmac_signature" db:"hmac_signature"`
}

// SignaturePayload returns the subset of fields covered by HMACSignature, in
// the exact shape that must be canonicalized before signing or verifying.
// CreatedAt is truncated to RFC3339Nano text so re-marshaling never shifts
// the signed bytes.
func (e *AuditEntry) SignaturePayload() map[string]interface{} {
	payload := map[string]interface{}{
		"id":            e.ID.String(),
		"event_type":    string(e.EventType),
		"actor_type":    string(e.ActorType),
		"resource_type": e.ResourceType,
		"action":        e.Action,
		"ip":            e.IPAddress,
		"ua":            e.UserAgent,
		"request_id":    e.RequestID,
		"created_at":    e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"prev_signature": e.PrevSignature,
	}
	if e.ActorID != nil {
		payload["actor_id"] = e.ActorID.String()
	}
	if e.ResourceID != nil {
		payload["resource_id"] = e.ResourceID.String()
	}
	if e.Details != nil {
		payload["details"] = e.Details
	}
	return payload
}

// ComplianceReport summarizes audit activity over a period for SOC2/PCI-DSS
// style reporting. Generated on demand; never persisted.
type ComplianceReport struct {
	ReportType        string           `json:"report_type"`
	PeriodStart       time.Time        `json:"period_start"`
	PeriodEnd         time.Time        `json:"period_end"`
	GeneratedAt       time.Time        `json:"generated_at"`
	TotalEvents       int64            `json:"total_events"`
	UniqueActors      int64            `json:"unique_actors"`
	EventBreakdown    map[string]int64 `json:"event_breakdown"`
	SecurityEvents    int64            `json:"security_events"`
	IntegrityStatus   string           `json:"integrity_status"`
	TamperedEntryIDs  []string         `json:"tampered_entry_ids,omitempty"`
}

// IntegrityResult is the outcome of verifying a range of audit entries.
type IntegrityResult struct {
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TotalEntries    int64     `json:"total_entries"`
	VerifiedAt      time.Time `json:"verified_at"`
	Status          string    `json:"status"` // verified | compromised | chain_broken
	TamperedEntries []string  `json:"tampered_entries,omitempty"`
	BrokenLinks     []string  `json:"broken_links,omitempty"`
}
