package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusDisputed   = "disputed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Escrow statuses — fund custody axis, orthogonal to order status.
// "releasing" is a transient claim taken while the transfer call is in
// flight so a concurrent dispute loses cleanly instead of racing.
const (
	EscrowStatusHeld      = "held"
	EscrowStatusReleasing = "releasing"
	EscrowStatusReleased  = "released"
	EscrowStatusDisputed  = "disputed"
	EscrowStatusRefunded  = "refunded"
)

// Valid state transitions: from -> []to.
// Cancellation is only reachable from pending: funds are never captured
// before the pending->paid transition, so a cancelled order never holds money.
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusInProgress, OrderStatusDisputed},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusCompleted:  {OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

func IsValidOrderTransition(from, to string) bool {
	allowed, ok := ValidOrderTransitions[from]
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

// IsTerminal reports whether no further transition can touch the order.
// completed is terminal only once custody has left escrow.
func IsTerminal(status, escrowStatus string) bool {
	switch status {
	case OrderStatusCancelled, OrderStatusRefunded:
		return true
	case OrderStatusCompleted:
		return escrowStatus == EscrowStatusReleased
	}
	return false
}

// ComputeFee returns round-half-up(amount * percent / 100) in minor units.
func ComputeFee(amount int64, percent int) int64 {
	return (amount*int64(percent) + 50) / 100
}

// NewOrderRef generates a human-readable order identifier (ORD-XXXXXXXXXXXX).
// The ref is stable and appears in URLs and receipts.
func NewOrderRef() string {
	return "ORD-" + randToken()
}

func randToken() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

type Order struct {
	ID       uuid.UUID `json:"id"`
	Ref      string    `json:"ref"`
	PayerID  uuid.UUID `json:"payer_id"`
	PayeeID  uuid.UUID `json:"payee_id"`

	// Amounts are fixed at creation and only read thereafter.
	// Invariant: Amount = PlatformFee + PayeeNet.
	Amount      int64  `json:"amount"` // minor currency units
	Currency    string `json:"currency"`
	PlatformFee int64  `json:"platform_fee"`
	PayeeNet    int64  `json:"payee_net"`

	Status       string `json:"status"`
	EscrowStatus string `json:"escrow_status"`
	Description  string `json:"description"`

	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	TransferID      *string `json:"transfer_id,omitempty"`
	RefundID        *string `json:"refund_id,omitempty"`
	CaptureKey      string  `json:"-"` // idempotency key used for the capture call

	DisputeReason    *string `json:"dispute_reason,omitempty"`
	RefundReasonCode *string `json:"refund_reason_code,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}
