package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/events"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/rbac"
	"github.com/judicature/backend/internal/repositories"
)

const (
	descriptionMinLen = 10
	descriptionMaxLen = 500
)

// RequestService runs the pre-order negotiation: a provider proposes a
// priced engagement, the client accepts and pays. Expiry is enforced lazily
// against the stored deadline, and the one-order-per-request guarantee rests
// on a conditional attach of the order id.
type RequestService struct {
	requests  RequestStore
	orders    *OrderService
	users     UserStore
	audit     AuditLogger
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewRequestService(requests RequestStore, orders *OrderService, users UserStore, audit AuditLogger, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *RequestService {
	return &RequestService{
		requests:  requests,
		orders:    orders,
		users:     users,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type CreateRequestInput struct {
	CounterpartyID uuid.UUID
	Amount         int64
	Currency       string
	ServiceType    string
	Description    string
	Urgency        string
	EtaDays        int
}

func (s *RequestService) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*models.PaymentRequest, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermCreateRequest) {
		return nil, apperr.ForbiddenErr("only lawyers can create payment requests")
	}
	if in.Currency == "" {
		in.Currency = "usd"
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyStandard
	}

	fields := map[string]string{}
	if in.Amount < int64(s.cfg.MinOrderAmount) {
		fields["amount"] = fmt.Sprintf("must be at least %d", s.cfg.MinOrderAmount)
	}
	if !currencyRe.MatchString(in.Currency) {
		fields["currency"] = "must be a lowercase ISO 4217 code"
	}
	if l := len(in.Description); l < descriptionMinLen || l > descriptionMaxLen {
		fields["description"] = fmt.Sprintf("must be %d-%d characters", descriptionMinLen, descriptionMaxLen)
	}
	if !models.IsValidServiceType(in.ServiceType) {
		fields["service_type"] = "unknown service type"
	}
	if !models.IsValidUrgency(in.Urgency) {
		fields["urgency"] = "unknown urgency tier"
	}
	if in.EtaDays <= 0 {
		fields["eta_days"] = "must be positive"
	}
	if in.CounterpartyID == actor.ID {
		fields["counterparty_id"] = "cannot request payment from yourself"
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidErr("invalid payment request", fields)
	}

	counterparty, err := s.users.GetByID(ctx, in.CounterpartyID)
	if err != nil {
		return nil, s.notFoundOr(err, "counterparty not found")
	}
	if counterparty.Role != rbac.RoleClient {
		return nil, apperr.InvalidErr("invalid payment request", map[string]string{
			"counterparty_id": "must be a client account",
		})
	}

	now := s.now()
	pr := &models.PaymentRequest{
		Ref:            models.NewRequestRef(),
		ProposerID:     actor.ID,
		CounterpartyID: in.CounterpartyID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		ServiceType:    in.ServiceType,
		Description:    in.Description,
		Urgency:        in.Urgency,
		EtaDays:        in.EtaDays,
		Status:         models.RequestStatusPending,
		ExpiresAt:      now.Add(time.Duration(s.cfg.RequestExpiryDays) * 24 * time.Hour),
	}
	if err := s.requests.Create(ctx, pr); err != nil {
		return nil, apperr.Wrap(err)
	}

	s.recordAction(ctx, &actor.ID, "request_created", pr.ID, map[string]any{
		"ref": pr.Ref, "amount": pr.Amount, "counterparty_id": pr.CounterpartyID.String(),
	})
	s.publish(ctx, events.EventRequestCreated, pr)
	return pr, nil
}

// Respond records the counterparty's accept/reject decision. An expired
// request refuses both answers even though the row still reads pending.
func (s *RequestService) Respond(ctx context.Context, requestID uuid.UUID, actor Actor, accept bool) (*models.PaymentRequest, error) {
	pr, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != pr.CounterpartyID {
		return nil, apperr.ForbiddenErr("only the counterparty can respond to this request")
	}
	if pr.Expired(s.now()) {
		return nil, apperr.ConflictErr("request has expired")
	}
	if pr.Status != models.RequestStatusPending {
		return nil, apperr.ConflictErr("request was already responded to")
	}

	to := models.RequestStatusRejected
	if accept {
		to = models.RequestStatusAccepted
	}
	ok, err := s.requests.MarkResponded(ctx, pr.ID, to)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("request was already responded to")
	}

	s.recordAction(ctx, &actor.ID, "request_responded", pr.ID, map[string]any{
		"ref": pr.Ref, "decision": to,
	})
	pr, err = s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventRequestResponded, pr)
	return pr, nil
}

// ProceedWithPayment turns an accepted request into a paid escrow order.
// The order id is attached with a conditional update before any money
// moves, so concurrent calls converge on a single order; a failed capture
// leaves the request accepted with the order attached, and a retry re-plays
// the same capture key against the same order.
func (s *RequestService) ProceedWithPayment(ctx context.Context, requestID uuid.UUID, actor Actor, paymentMethodRef string) (*models.PaymentRequest, *models.Order, error) {
	pr, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if actor.ID != pr.CounterpartyID {
		return nil, nil, apperr.ForbiddenErr("only the counterparty can pay for this request")
	}
	if pr.Status != models.RequestStatusAccepted {
		return nil, nil, apperr.ConflictErr("request is not payable in status " + pr.Status)
	}

	var o *models.Order
	if pr.OrderID != nil {
		o, err = s.orders.getOrder(ctx, *pr.OrderID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		o, err = s.orders.CreateOrder(ctx, CreateOrderInput{
			PayerID:     pr.CounterpartyID,
			PayeeID:     pr.ProposerID,
			Amount:      pr.Amount,
			Currency:    pr.Currency,
			Description: pr.Description,
		})
		if err != nil {
			return nil, nil, err
		}
		attached, err := s.requests.AttachOrder(ctx, pr.ID, o.ID)
		if err != nil {
			return nil, nil, apperr.Wrap(err)
		}
		if !attached {
			// Lost the attach race: another call minted the order first.
			// Void ours (no money has moved on it) and follow theirs.
			if _, err := s.orders.orders.CancelPending(ctx, o.ID); err != nil {
				s.log.Error("failed to void orphaned order", zap.String("order_ref", o.Ref), zap.Error(err))
			}
			pr, err = s.getRequest(ctx, requestID)
			if err != nil {
				return nil, nil, err
			}
			if pr.OrderID == nil {
				return nil, nil, apperr.ConflictErr("request changed state during payment")
			}
			o, err = s.orders.getOrder(ctx, *pr.OrderID)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	o, err = s.orders.CapturePayment(ctx, o.ID, actor, paymentMethodRef)
	if err != nil {
		// Request stays accepted with the order attached; a retry
		// re-captures this same order instead of minting another.
		return nil, nil, err
	}
	if o.Status != models.OrderStatusPaid {
		// Capture pending gateway confirmation; the webhook closes it out.
		return pr, o, nil
	}

	// Losing this transition is benign: a concurrent call already moved it.
	if _, err := s.requests.TransitionStatus(ctx, pr.ID, models.RequestStatusAccepted, models.RequestStatusPaid); err != nil {
		return nil, nil, apperr.Wrap(err)
	}

	s.recordAction(ctx, &actor.ID, "request_paid", pr.ID, map[string]any{
		"ref": pr.Ref, "order_ref": o.Ref,
	})
	pr, err = s.getRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.EventRequestResponded, pr)
	return pr, o, nil
}

// CancelRequest withdraws a still-pending request. Proposer only.
func (s *RequestService) CancelRequest(ctx context.Context, requestID uuid.UUID, actor Actor) (*models.PaymentRequest, error) {
	pr, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != pr.ProposerID {
		return nil, apperr.ForbiddenErr("only the proposer can cancel this request")
	}
	ok, err := s.requests.TransitionStatus(ctx, pr.ID, models.RequestStatusPending, models.RequestStatusCancelled)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("only pending requests can be cancelled")
	}

	s.recordAction(ctx, &actor.ID, "request_cancelled", pr.ID, map[string]any{"ref": pr.Ref})
	pr, err = s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventRequestCancelled, pr)
	return pr, nil
}

// GetRequest returns a request the actor participates in. A paid request
// whose order has completed with funds released is rolled forward to
// completed on read; like expiry, completion is derived, not scheduled.
func (s *RequestService) GetRequest(ctx context.Context, requestID uuid.UUID, actor Actor) (*models.PaymentRequest, error) {
	pr, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != pr.ProposerID && actor.ID != pr.CounterpartyID && actor.Role != rbac.RoleAdmin {
		return nil, apperr.ForbiddenErr("not a participant of this request")
	}
	return s.syncCompletion(ctx, pr)
}

func (s *RequestService) ListRequests(ctx context.Context, actor Actor, f repositories.RequestFilter) ([]models.PaymentRequest, error) {
	if actor.Role != rbac.RoleAdmin {
		f.ParticipantID = &actor.ID
	}
	prs, err := s.requests.List(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return prs, nil
}

func (s *RequestService) syncCompletion(ctx context.Context, pr *models.PaymentRequest) (*models.PaymentRequest, error) {
	if pr.Status != models.RequestStatusPaid || pr.OrderID == nil {
		return pr, nil
	}
	o, err := s.orders.getOrder(ctx, *pr.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusCompleted || o.EscrowStatus != models.EscrowStatusReleased {
		return pr, nil
	}
	if _, err := s.requests.TransitionStatus(ctx, pr.ID, models.RequestStatusPaid, models.RequestStatusCompleted); err != nil {
		return nil, apperr.Wrap(err)
	}
	return s.getRequest(ctx, pr.ID)
}

func (s *RequestService) getRequest(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "request not found")
	}
	return pr, nil
}

func (s *RequestService) notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFoundErr(msg)
	}
	return apperr.Wrap(err)
}

func (s *RequestService) recordAction(ctx context.Context, actorID *uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   "user",
		Action:      action,
		EntityType:  "payment_request",
		EntityID:    &entityID,
		Meta:        meta,
	})
	if err != nil {
		s.log.Error("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *RequestService) publish(ctx context.Context, eventType string, pr *models.PaymentRequest) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"request_id":      pr.ID.String(),
			"ref":             pr.Ref,
			"proposer_id":     pr.ProposerID.String(),
			"counterparty_id": pr.CounterpartyID.String(),
			"status":          pr.Status,
			"amount":          pr.Amount,
		},
	})
	if err != nil {
		s.log.Warn("event publish failed", zap.String("event", eventType), zap.Error(err))
	}
}
