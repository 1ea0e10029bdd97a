package models

import (
	"time"

	"github.com/google/uuid"
)

// Deliverable statuses
const (
	DeliverableStatusPending  = "pending"
	DeliverableStatusAccepted = "accepted"
	DeliverableStatusRejected = "rejected"
)

// Deliverable is a piece of work the payee submits against an order.
// FileRef is an opaque blob-store pointer; nothing here inspects content.
// Once reviewed a deliverable is immutable — rejected work is superseded
// by a new submission, never edited in place.
type Deliverable struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
	FileRef string    `json:"file_ref"`
	Status  string    `json:"status"`

	ReviewerID  *uuid.UUID `json:"reviewer_id,omitempty"`
	ReviewNotes *string    `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
