package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRequest statuses
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
	RequestStatusPaid      = "paid"
	RequestStatusCompleted = "completed"
)

var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusAccepted:  {RequestStatusPaid},
	RequestStatusPaid:      {RequestStatusCompleted},
	RequestStatusRejected:  {},
	RequestStatusCancelled: {},
	RequestStatusCompleted: {},
}

func IsValidRequestTransition(from, to string) bool {
	allowed, ok := ValidRequestTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Service types a provider can propose.
const (
	ServiceTypeConsultation        = "consultation"
	ServiceTypeContractReview      = "contract_review"
	ServiceTypeDocumentDrafting    = "document_drafting"
	ServiceTypeCourtRepresentation = "court_representation"
	ServiceTypeNotarization        = "notarization"
	ServiceTypeOther               = "other"
)

var serviceTypes = map[string]bool{
	ServiceTypeConsultation:        true,
	ServiceTypeContractReview:      true,
	ServiceTypeDocumentDrafting:    true,
	ServiceTypeCourtRepresentation: true,
	ServiceTypeNotarization:        true,
	ServiceTypeOther:               true,
}

func IsValidServiceType(s string) bool { return serviceTypes[s] }

// Urgency tiers
const (
	UrgencyStandard = "standard"
	UrgencyPriority = "priority"
	UrgencyUrgent   = "urgent"
)

var urgencyTiers = map[string]bool{
	UrgencyStandard: true,
	UrgencyPriority: true,
	UrgencyUrgent:   true,
}

func IsValidUrgency(s string) bool { return urgencyTiers[s] }

// NewRequestRef generates a human-readable request identifier (REQ-XXXXXXXXXXXX).
func NewRequestRef() string {
	return "REQ-" + randToken()
}

// PaymentRequest is the pre-order handshake: the proposer (service provider)
// names a price, the counterparty accepts or rejects. At most one order is
// ever created from a request; OrderID is the permanent cross-reference.
type PaymentRequest struct {
	ID             uuid.UUID `json:"id"`
	Ref            string    `json:"ref"`
	ProposerID     uuid.UUID `json:"proposer_id"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`

	Amount      int64  `json:"amount"` // minor currency units
	Currency    string `json:"currency"`
	ServiceType string `json:"service_type"`
	Description string `json:"description"`
	Urgency     string `json:"urgency"`
	EtaDays     int    `json:"eta_days"`

	Status  string     `json:"status"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`

	// ExpiresAt is computed once at creation and never re-evaluated;
	// expiry is enforced by comparing now against it at read/respond time.
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Expired reports whether a still-pending request has passed its expiry window.
func (r *PaymentRequest) Expired(now time.Time) bool {
	return r.Status == RequestStatusPending && now.After(r.ExpiresAt)
}
