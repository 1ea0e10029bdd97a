package payments

import (
	"context"
	"fmt"
)

// Intent/transfer/refund statuses as reported by the processor.
const (
	StatusSucceeded = "succeeded"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// IntentParams describes a create-and-confirm capture call. OrderRef is
// attached as metadata so asynchronous webhook deliveries can be matched
// back to the order even when the synchronous response was lost.
type IntentParams struct {
	Amount           int64
	Currency         string
	IdempotencyKey   string
	PaymentMethodRef string
	OrderRef         string
}

type TransferParams struct {
	Amount             int64
	Currency           string
	DestinationAccount string
	IdempotencyKey     string
	OrderRef           string
}

type RefundParams struct {
	IntentID       string
	Amount         int64
	IdempotencyKey string
	OrderRef       string
}

type IntentResult struct {
	IntentID string
	Status   string
}

type TransferResult struct {
	TransferID string
	Status     string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// GatewayError carries the processor's reason code (decline code etc.)
// so callers can surface it verbatim instead of translating it away.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
}

// Gateway wraps the external payment processor. Calls are cancellable but
// not reversible once acknowledged: a caller that times out must reconcile
// via the webhook path, never retry blindly — which is why every money-moving
// call takes a deterministic idempotency key derived from the order ref.
type Gateway interface {
	CreateAndConfirmIntent(ctx context.Context, p IntentParams) (*IntentResult, error)
	CreateTransfer(ctx context.Context, p TransferParams) (*TransferResult, error)
	Refund(ctx context.Context, p RefundParams) (*RefundResult, error)
}
