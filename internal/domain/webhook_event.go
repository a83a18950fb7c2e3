package domain

import "time"

type WebhookEventStatus string

const (
	WebhookEventStatusReceived   WebhookEventStatus = "RECEIVED"
	WebhookEventStatusProcessing WebhookEventStatus = "PROCESSING"
	WebhookEventStatusProcessed  WebhookEventStatus = "PROCESSED"
	WebhookEventStatusRetrying   WebhookEventStatus = "RETRYING"
	WebhookEventStatusFailed     WebhookEventStatus = "FAILED"
)

// WebhookEvent is one inbound processor notification. Rows are append-only
// and serve as the audit trail; only the reconciler mutates status,
// attempts and last_error.
type WebhookEvent struct {
	ID               int64              `json:"id"`
	ExternalEventID  string             `json:"external_event_id"`
	Type             string             `json:"type"`
	Payload          []byte             `json:"payload"`
	RelatedReference string             `json:"related_reference,omitempty"`
	Livemode         bool               `json:"livemode"`
	Status           WebhookEventStatus `json:"status"`
	Attempts         int32              `json:"attempts"`
	LastError        string             `json:"last_error,omitempty"`
	ReceivedAt       time.Time          `json:"received_at"`
	ProcessedAt      *time.Time         `json:"processed_at,omitempty"`
	NextAttemptAt    *time.Time         `json:"next_attempt_at,omitempty"`
}
