package entities

import "time"

// ProcessedWebhook records a webhook delivery after signature verification,
// keyed uniquely on (WebhookID, Provider) so a retried delivery from the
// provider is accepted at most once (I7).
type ProcessedWebhook struct {
	WebhookID      string    `json:"webhook_id" db:"webhook_id"`
	Provider       string    `json:"provider" db:"provider"`
	EventType      string    `json:"event_type" db:"event_type"`
	Payload        []byte    `json:"-" db:"payload"`
	Status         string    `json:"status" db:"status"`
	SignatureValid bool      `json:"signature_valid" db:"signature_valid"`
	ReceivedAt     time.Time `json:"received_at" db:"received_at"`
}
