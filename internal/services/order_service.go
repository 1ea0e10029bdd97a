package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/events"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/payments"
	"github.com/judicature/backend/internal/rbac"
	"github.com/judicature/backend/internal/repositories"
)

var currencyRe = regexp.MustCompile(`^[a-z]{3}$`)

// OrderService owns the escrow order lifecycle. Money-moving operations
// follow a fixed shape: win the conditional state transition first (or call
// the gateway with a deterministic idempotency key), and only record
// terminal money states after the gateway confirmed. The escrow ledger here
// is the source of truth; gateway webhooks reconcile it, they do not drive it.
type OrderService struct {
	orders    OrderStore
	users     UserStore
	audit     AuditLogger
	gateway   payments.Gateway
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewOrderService(orders OrderStore, users UserStore, audit AuditLogger, gateway payments.Gateway, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		users:     users,
		audit:     audit,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type CreateOrderInput struct {
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	Amount      int64
	Currency    string
	Description string
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	fields := map[string]string{}
	if in.Amount < int64(s.cfg.MinOrderAmount) {
		fields["amount"] = fmt.Sprintf("must be at least %d", s.cfg.MinOrderAmount)
	}
	if !currencyRe.MatchString(in.Currency) {
		fields["currency"] = "must be a lowercase ISO 4217 code"
	}
	if in.PayerID == in.PayeeID {
		fields["payee_id"] = "payer and payee must differ"
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidErr("invalid order", fields)
	}

	fee := models.ComputeFee(in.Amount, s.cfg.PlatformFeePercent)
	ref := models.NewOrderRef()
	o := &models.Order{
		Ref:          ref,
		PayerID:      in.PayerID,
		PayeeID:      in.PayeeID,
		Amount:       in.Amount,
		Currency:     in.Currency,
		PlatformFee:  fee,
		PayeeNet:     in.Amount - fee,
		Status:       models.OrderStatusPending,
		EscrowStatus: models.EscrowStatusHeld,
		Description:  in.Description,
		CaptureKey:   "capture:" + ref,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, apperr.Wrap(err)
	}

	s.recordAction(ctx, &in.PayerID, "user", "order_created", o.ID, map[string]any{
		"ref": o.Ref, "amount": o.Amount, "platform_fee": o.PlatformFee,
	})
	s.publish(ctx, events.EventOrderCreated, o)
	return o, nil
}

// CapturePayment charges the payer and moves the order pending -> paid.
// The capture key is fixed at order creation, so a retry after a lost
// response re-plays the same charge at the gateway instead of double
// charging. If the order is already paid the call is a no-op.
func (s *OrderService) CapturePayment(ctx context.Context, orderID uuid.UUID, actor Actor, paymentMethodRef string) (*models.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayerID {
		return nil, apperr.ForbiddenErr("only the payer can pay for this order")
	}
	if o.Status != models.OrderStatusPending {
		if o.Status == models.OrderStatusPaid || o.PaymentIntentID != nil {
			return o, nil
		}
		return nil, apperr.ConflictErr("order is not payable in status " + o.Status)
	}

	res, err := s.gateway.CreateAndConfirmIntent(ctx, payments.IntentParams{
		Amount:           o.Amount,
		Currency:         o.Currency,
		IdempotencyKey:   o.CaptureKey,
		PaymentMethodRef: paymentMethodRef,
		OrderRef:         o.Ref,
	})
	if err != nil {
		return nil, s.gatewayError("payment capture failed", err)
	}
	if res.Status == payments.StatusFailed {
		// A 2xx intent response can still carry a terminally failed status
		// (e.g. canceled at the processor). The order stays pending.
		return nil, apperr.GatewayErr("payment capture failed", "payment_failed", nil)
	}
	if res.Status != payments.StatusSucceeded {
		// Capture is in flight at the gateway; the webhook confirms it.
		s.log.Info("capture pending gateway confirmation",
			zap.String("order_ref", o.Ref), zap.String("intent_id", res.IntentID))
		return o, nil
	}

	ok, err := s.orders.MarkPaid(ctx, o.ID, res.IntentID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		// Lost the transition, usually to the webhook reconciler. Benign
		// if someone already marked it paid, a real conflict otherwise.
		o, err = s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == models.OrderStatusPaid {
			return o, nil
		}
		return nil, apperr.ConflictErr("order changed state during capture")
	}

	s.recordAction(ctx, &actor.ID, "user", "order_paid", o.ID, map[string]any{
		"ref": o.Ref, "intent_id": res.IntentID,
	})
	o, err = s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventOrderPaid, o)
	return o, nil
}

// SubmitDeliverable records work against a paid order. The first submission
// moves the order paid -> in_progress; resubmissions after a rejection leave
// the status alone. Disputed orders reject submissions.
func (s *OrderService) SubmitDeliverable(ctx context.Context, orderID uuid.UUID, actor Actor, fileRef string) (*models.Deliverable, error) {
	if fileRef == "" {
		return nil, apperr.InvalidErr("invalid deliverable", map[string]string{"file_ref": "is required"})
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayeeID {
		return nil, apperr.ForbiddenErr("only the payee can submit deliverables")
	}
	if o.Status != models.OrderStatusPaid && o.Status != models.OrderStatusInProgress {
		return nil, apperr.ConflictErr("order does not accept deliverables in status " + o.Status)
	}

	d := &models.Deliverable{
		OrderID: o.ID,
		FileRef: fileRef,
		Status:  models.DeliverableStatusPending,
	}
	if err := s.orders.CreateDeliverable(ctx, d); err != nil {
		return nil, apperr.Wrap(err)
	}
	if o.Status == models.OrderStatusPaid {
		// Ignore a lost race: a concurrent submission already advanced it.
		if _, err := s.orders.TransitionStatus(ctx, o.ID, models.OrderStatusPaid, models.OrderStatusInProgress); err != nil {
			return nil, apperr.Wrap(err)
		}
	}

	s.recordAction(ctx, &actor.ID, "user", "deliverable_submitted", o.ID, map[string]any{
		"ref": o.Ref, "deliverable_id": d.ID.String(),
	})
	s.publish(ctx, events.EventDeliverableSubmitted, o)
	return d, nil
}

// ReviewDeliverable lets the payer accept or reject submitted work.
// Accepting moves the order to completed; funds stay in escrow until an
// explicit release. Rejecting keeps the order in_progress for resubmission.
func (s *OrderService) ReviewDeliverable(ctx context.Context, deliverableID uuid.UUID, actor Actor, accept bool, notes string) (*models.Order, error) {
	d, err := s.orders.GetDeliverable(ctx, deliverableID)
	if err != nil {
		return nil, s.notFoundOr(err, "deliverable not found")
	}
	o, err := s.getOrder(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayerID {
		return nil, apperr.ForbiddenErr("only the payer can review deliverables")
	}
	if o.Status != models.OrderStatusInProgress {
		return nil, apperr.ConflictErr("order is not reviewable in status " + o.Status)
	}

	decision := models.DeliverableStatusRejected
	if accept {
		decision = models.DeliverableStatusAccepted
	}
	ok, err := s.orders.ReviewDeliverable(ctx, d.ID, actor.ID, decision, notes)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("deliverable was already reviewed")
	}

	if accept {
		ok, err := s.orders.MarkCompleted(ctx, o.ID, models.OrderStatusInProgress)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if !ok {
			return nil, apperr.ConflictErr("order changed state during review")
		}
	}

	s.recordAction(ctx, &actor.ID, "user", "deliverable_reviewed", o.ID, map[string]any{
		"ref": o.Ref, "deliverable_id": d.ID.String(), "decision": decision,
	})
	o, err = s.getOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventDeliverableReviewed, o)
	return o, nil
}

// WithdrawDeliverable lets the payee pull back a submission the payer has
// not reviewed yet, e.g. to replace a wrongly uploaded file. Reviewed
// deliverables are part of the record and stay.
func (s *OrderService) WithdrawDeliverable(ctx context.Context, deliverableID uuid.UUID, actor Actor) error {
	d, err := s.orders.GetDeliverable(ctx, deliverableID)
	if err != nil {
		return s.notFoundOr(err, "deliverable not found")
	}
	o, err := s.getOrder(ctx, d.OrderID)
	if err != nil {
		return err
	}
	if actor.ID != o.PayeeID {
		return apperr.ForbiddenErr("only the payee can withdraw a deliverable")
	}

	ok, err := s.orders.DeleteDeliverable(ctx, d.ID)
	if err != nil {
		return apperr.Wrap(err)
	}
	if !ok {
		return apperr.ConflictErr("deliverable was already reviewed")
	}

	s.recordAction(ctx, &actor.ID, "user", "deliverable_withdrawn", o.ID, map[string]any{
		"ref": o.Ref, "deliverable_id": d.ID.String(),
	})
	return nil
}

// ReleaseFunds pays the payee their net amount. The order first takes the
// transient releasing claim; exactly one of a concurrent release/dispute
// pair can win it. released is only recorded after the gateway confirmed
// the transfer, and a gateway failure reverts the claim back to held.
func (s *OrderService) ReleaseFunds(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayerID && actor.Role != rbac.RoleAdmin {
		return nil, apperr.ForbiddenErr("only the payer or an admin can release funds")
	}
	if o.EscrowStatus == models.EscrowStatusReleased {
		return o, nil
	}

	ok, err := s.orders.ClaimRelease(ctx, o.ID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		o, err = s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.EscrowStatus == models.EscrowStatusReleased {
			return o, nil
		}
		return nil, apperr.ConflictErr("funds cannot be released in status " + o.Status + "/" + o.EscrowStatus)
	}

	o, err = s.transferToPayee(ctx, o, actor)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// transferToPayee runs the gateway transfer for an order that already holds
// the releasing claim and records the outcome. Shared by ReleaseFunds and
// the payee-favor dispute resolution.
func (s *OrderService) transferToPayee(ctx context.Context, o *models.Order, actor Actor) (*models.Order, error) {
	revert := func() {
		if err := s.orders.RevertRelease(ctx, o.ID); err != nil {
			s.log.Error("failed to revert release claim", zap.String("order_ref", o.Ref), zap.Error(err))
		}
	}

	payee, err := s.users.GetByID(ctx, o.PayeeID)
	if err != nil {
		revert()
		return nil, apperr.Wrap(err)
	}
	if payee.PayoutAccountRef == nil {
		revert()
		return nil, apperr.ConflictErr("payee has no payout account connected")
	}

	res, err := s.gateway.CreateTransfer(ctx, payments.TransferParams{
		Amount:             o.PayeeNet,
		Currency:           o.Currency,
		DestinationAccount: *payee.PayoutAccountRef,
		IdempotencyKey:     "transfer:" + o.Ref,
		OrderRef:           o.Ref,
	})
	if err != nil {
		revert()
		return nil, s.gatewayError("funds release failed", err)
	}

	ok, err := s.orders.MarkReleased(ctx, o.ID, res.TransferID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		// The claim guarantees sole ownership of this path; losing the
		// final write means something external touched the row.
		s.log.Error("release claim lost before final write", zap.String("order_ref", o.Ref))
		return nil, apperr.ConflictErr("order changed state during release")
	}

	s.recordAction(ctx, &actor.ID, actorType(actor), "funds_released", o.ID, map[string]any{
		"ref": o.Ref, "transfer_id": res.TransferID, "payee_net": o.PayeeNet,
	})
	o, err = s.getOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventFundsReleased, o)
	return o, nil
}

// RaiseDispute freezes the order. Either participant can raise one while
// funds are still held; a dispute and a release race for the same
// conditional update, so at most one of them lands.
func (s *OrderService) RaiseDispute(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, apperr.InvalidErr("invalid dispute", map[string]string{"reason": "is required"})
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayerID && actor.ID != o.PayeeID {
		return nil, apperr.ForbiddenErr("only order participants can raise a dispute")
	}
	if !models.IsValidOrderTransition(o.Status, models.OrderStatusDisputed) {
		return nil, apperr.ConflictErr("order cannot be disputed in status " + o.Status)
	}

	ok, err := s.orders.MarkDisputed(ctx, o.ID, o.Status, reason)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("order changed state before the dispute landed")
	}

	s.recordAction(ctx, &actor.ID, "user", "dispute_raised", o.ID, map[string]any{
		"ref": o.Ref, "reason": reason,
	})
	o, err = s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventOrderDisputed, o)
	return o, nil
}

// Dispute resolutions
const (
	ResolveFavorPayer = "payer"
	ResolveFavorPayee = "payee"
)

// ResolveDispute settles a disputed order. In the payee's favor the escrow
// is released to them; in the payer's favor the capture is refunded in full.
func (s *OrderService) ResolveDispute(ctx context.Context, orderID uuid.UUID, actor Actor, favor string) (*models.Order, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermResolveDispute) {
		return nil, apperr.ForbiddenErr("only admins can resolve disputes")
	}
	if favor != ResolveFavorPayer && favor != ResolveFavorPayee {
		return nil, apperr.InvalidErr("invalid resolution", map[string]string{"favor": "must be payer or payee"})
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusDisputed {
		return nil, apperr.ConflictErr("order is not disputed")
	}

	if favor == ResolveFavorPayee {
		ok, err := s.orders.ClaimResolveRelease(ctx, o.ID)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if !ok {
			return nil, apperr.ConflictErr("dispute was already resolved")
		}
		o, err = s.transferToPayeeResolving(ctx, o, actor)
		if err != nil {
			return nil, err
		}
		return o, nil
	}

	return s.refund(ctx, o, actor, models.EscrowStatusDisputed, "dispute_resolved_payer")
}

// transferToPayeeResolving mirrors transferToPayee but reverts back to the
// disputed state on failure instead of held.
func (s *OrderService) transferToPayeeResolving(ctx context.Context, o *models.Order, actor Actor) (*models.Order, error) {
	revert := func() {
		if err := s.orders.RevertResolveRelease(ctx, o.ID); err != nil {
			s.log.Error("failed to revert dispute resolution", zap.String("order_ref", o.Ref), zap.Error(err))
		}
	}

	payee, err := s.users.GetByID(ctx, o.PayeeID)
	if err != nil {
		revert()
		return nil, apperr.Wrap(err)
	}
	if payee.PayoutAccountRef == nil {
		revert()
		return nil, apperr.ConflictErr("payee has no payout account connected")
	}

	res, err := s.gateway.CreateTransfer(ctx, payments.TransferParams{
		Amount:             o.PayeeNet,
		Currency:           o.Currency,
		DestinationAccount: *payee.PayoutAccountRef,
		IdempotencyKey:     "transfer:" + o.Ref,
		OrderRef:           o.Ref,
	})
	if err != nil {
		revert()
		return nil, s.gatewayError("funds release failed", err)
	}

	ok, err := s.orders.MarkReleased(ctx, o.ID, res.TransferID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		s.log.Error("resolution claim lost before final write", zap.String("order_ref", o.Ref))
		return nil, apperr.ConflictErr("order changed state during resolution")
	}

	s.recordAction(ctx, &actor.ID, "admin", "dispute_resolved", o.ID, map[string]any{
		"ref": o.Ref, "favor": ResolveFavorPayee, "transfer_id": res.TransferID,
	})
	o, err = s.getOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventFundsReleased, o)
	return o, nil
}

// RefundOrder returns the full captured amount to the payer. Only possible
// while funds are still in escrow; a released order can never be refunded
// from here. Already-refunded orders are a no-op.
func (s *OrderService) RefundOrder(ctx context.Context, orderID uuid.UUID, actor Actor, reasonCode string) (*models.Order, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermRefundOrder) {
		return nil, apperr.ForbiddenErr("only admins can refund orders")
	}
	if reasonCode == "" {
		return nil, apperr.InvalidErr("invalid refund", map[string]string{"reason_code": "is required"})
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == models.OrderStatusRefunded {
		return o, nil
	}
	if o.EscrowStatus != models.EscrowStatusHeld {
		return nil, apperr.ConflictErr("order is not refundable in escrow status " + o.EscrowStatus)
	}
	return s.refund(ctx, o, actor, models.EscrowStatusHeld, reasonCode)
}

func (s *OrderService) refund(ctx context.Context, o *models.Order, actor Actor, expectedEscrow, reasonCode string) (*models.Order, error) {
	if o.PaymentIntentID == nil {
		return nil, apperr.ConflictErr("order has no captured payment to refund")
	}

	res, err := s.gateway.Refund(ctx, payments.RefundParams{
		IntentID:       *o.PaymentIntentID,
		Amount:         o.Amount,
		IdempotencyKey: "refund:" + o.Ref,
		OrderRef:       o.Ref,
	})
	if err != nil {
		return nil, s.gatewayError("refund failed", err)
	}

	ok, err := s.orders.MarkRefunded(ctx, o.ID, expectedEscrow, res.RefundID, reasonCode)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		o, err = s.getOrder(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if o.Status == models.OrderStatusRefunded {
			return o, nil
		}
		return nil, apperr.ConflictErr("order changed state during refund")
	}

	s.recordAction(ctx, &actor.ID, actorType(actor), "order_refunded", o.ID, map[string]any{
		"ref": o.Ref, "refund_id": res.RefundID, "reason_code": reasonCode,
	})
	o, err = s.getOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventOrderRefunded, o)
	return o, nil
}

// CancelOrder voids an order before any money moved. Only pending orders
// qualify; everything after capture goes through refund instead.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermCancelOrder) {
		return nil, apperr.ForbiddenErr("only admins can cancel orders")
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == models.OrderStatusCancelled {
		return o, nil
	}

	ok, err := s.orders.CancelPending(ctx, o.ID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("only pending orders can be cancelled")
	}

	s.recordAction(ctx, &actor.ID, actorType(actor), "order_cancelled", o.ID, map[string]any{"ref": o.Ref})
	o, err = s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventOrderCancelled, o)
	return o, nil
}

// CancelStalePending sweeps pending orders older than the configured age.
// Run from the worker; no money has moved on these, so cancellation is safe.
func (s *OrderService) CancelStalePending(ctx context.Context) (int, error) {
	stale, err := s.orders.GetStalePending(ctx, s.cfg.PendingOrderMaxAge)
	if err != nil {
		return 0, apperr.Wrap(err)
	}
	cancelled := 0
	for i := range stale {
		o := &stale[i]
		ok, err := s.orders.CancelPending(ctx, o.ID)
		if err != nil {
			s.log.Error("failed to cancel stale order", zap.String("order_ref", o.Ref), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		cancelled++
		o.Status = models.OrderStatusCancelled
		s.recordAction(ctx, nil, "system", "order_cancelled", o.ID, map[string]any{
			"ref": o.Ref, "cause": "stale_pending",
		})
		s.publish(ctx, events.EventOrderCancelled, o)
	}
	return cancelled, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.ID != o.PayerID && actor.ID != o.PayeeID && actor.Role != rbac.RoleAdmin {
		return nil, apperr.ForbiddenErr("not a participant of this order")
	}
	return o, nil
}

func (s *OrderService) GetOrderByRef(ctx context.Context, ref string, actor Actor) (*models.Order, error) {
	o, err := s.orders.GetByRef(ctx, ref)
	if err != nil {
		return nil, s.notFoundOr(err, "order not found")
	}
	if actor.ID != o.PayerID && actor.ID != o.PayeeID && actor.Role != rbac.RoleAdmin {
		return nil, apperr.ForbiddenErr("not a participant of this order")
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor Actor, f repositories.OrderFilter) ([]models.Order, error) {
	if actor.Role != rbac.RoleAdmin {
		f.ParticipantID = &actor.ID
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return orders, nil
}

func (s *OrderService) ListDeliverables(ctx context.Context, orderID uuid.UUID, actor Actor) ([]models.Deliverable, error) {
	if _, err := s.GetOrder(ctx, orderID, actor); err != nil {
		return nil, err
	}
	ds, err := s.orders.ListDeliverables(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return ds, nil
}

func (s *OrderService) getOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "order not found")
	}
	return o, nil
}

func (s *OrderService) notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFoundErr(msg)
	}
	return apperr.Wrap(err)
}

func (s *OrderService) gatewayError(msg string, err error) error {
	var ge *payments.GatewayError
	if errors.As(err, &ge) {
		return apperr.GatewayErr(msg, ge.Code, err)
	}
	return apperr.GatewayErr(msg, "gateway_unavailable", err)
}

// recordAction writes an audit entry. Audit failures are logged, never
// surfaced: the financial transition already committed.
func (s *OrderService) recordAction(ctx context.Context, actorID *uuid.UUID, actorType, action string, entityID uuid.UUID, meta map[string]any) {
	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "order",
		EntityID:    &entityID,
		Meta:        meta,
	})
	if err != nil {
		s.log.Error("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, o *models.Order) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"order_id":      o.ID.String(),
			"ref":           o.Ref,
			"payer_id":      o.PayerID.String(),
			"payee_id":      o.PayeeID.String(),
			"status":        o.Status,
			"escrow_status": o.EscrowStatus,
			"amount":        o.Amount,
		},
	})
	if err != nil {
		s.log.Warn("event publish failed", zap.String("event", eventType), zap.Error(err))
	}
}

func actorType(a Actor) string {
	if a.Role == rbac.RoleAdmin {
		return "admin"
	}
	return "user"
}
