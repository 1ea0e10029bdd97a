package events

import "context"

// Domain event types. Emitted after the financial state transition is
// durably committed; delivery is best-effort and never rolls state back.
const (
	EventOrderCreated         = "order.created"
	EventOrderPaid            = "order.paid"
	EventOrderCancelled       = "order.cancelled"
	EventOrderDisputed        = "order.disputed"
	EventOrderRefunded        = "order.refunded"
	EventDeliverableSubmitted = "deliverable.submitted"
	EventDeliverableReviewed  = "deliverable.reviewed"
	EventFundsReleased        = "funds.released"
	EventRequestCreated       = "request.created"
	EventRequestResponded     = "request.responded"
	EventRequestCancelled     = "request.cancelled"
)

// Streams
const (
	StreamOrders   = "events:order"
	StreamRequests = "events:request"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
