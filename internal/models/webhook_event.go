package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the dedup record for gateway webhook deliveries.
// ProviderEventID is unique; a row with ProcessedAt set means the event was
// applied and any redelivery is a no-op. A row without ProcessedAt means a
// prior attempt failed mid-dispatch and the redelivery should be retried.
// Rows are purged after the retention window.
type WebhookEvent struct {
	ID              uuid.UUID  `json:"id"`
	ProviderEventID string     `json:"provider_event_id"`
	EventType       string     `json:"event_type"`
	Payload         []byte     `json:"-"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError *string    `json:"processing_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
