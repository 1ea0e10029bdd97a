package payments

import (
	"context"
	"fmt"
	"strings"
)

// StubGateway is a no-network gateway for development. Payment method refs
// containing "declined" fail with a card_declined error; everything else
// succeeds. Idempotency keys are echoed into the generated ids so repeated
// calls with the same key yield the same result.
type StubGateway struct{}

func NewStubGateway() *StubGateway { return &StubGateway{} }

func (s *StubGateway) CreateAndConfirmIntent(ctx context.Context, p IntentParams) (*IntentResult, error) {
	if strings.Contains(p.PaymentMethodRef, "declined") {
		return nil, &GatewayError{Code: "card_declined", Message: "Your card was declined."}
	}
	return &IntentResult{
		IntentID: fmt.Sprintf("pi_stub_%s", p.IdempotencyKey),
		Status:   StatusSucceeded,
	}, nil
}

func (s *StubGateway) CreateTransfer(ctx context.Context, p TransferParams) (*TransferResult, error) {
	if p.DestinationAccount == "" {
		return nil, &GatewayError{Code: "missing_destination", Message: "No destination account."}
	}
	return &TransferResult{
		TransferID: fmt.Sprintf("tr_stub_%s", p.IdempotencyKey),
		Status:     StatusSucceeded,
	}, nil
}

func (s *StubGateway) Refund(ctx context.Context, p RefundParams) (*RefundResult, error) {
	if p.IntentID == "" {
		return nil, &GatewayError{Code: "missing_intent", Message: "No payment intent to refund."}
	}
	return &RefundResult{
		RefundID: fmt.Sprintf("re_stub_%s", p.IdempotencyKey),
		Status:   StatusSucceeded,
	}, nil
}
