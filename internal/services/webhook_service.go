package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/events"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/payments"
)

// WebhookService reconciles gateway deliveries against the order ledger.
// Verification fails closed; the provider event id is claimed before any
// state changes, so redeliveries of an already-processed event are no-ops.
// A failed dispatch keeps the claim unprocessed and returns an error, which
// surfaces as a 5xx and makes the gateway redeliver.
type WebhookService struct {
	webhooks  WebhookStore
	orders    OrderStore
	audit     AuditLogger
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewWebhookService(webhooks WebhookStore, orders OrderStore, audit AuditLogger, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *WebhookService {
	return &WebhookService{
		webhooks:  webhooks,
		orders:    orders,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func (s *WebhookService) HandleDelivery(ctx context.Context, rawBody []byte, sigHeader string) error {
	event, err := payments.VerifyWebhookSignature(rawBody, sigHeader, s.cfg.GatewayWebhookSecret, s.cfg.WebhookTolerance)
	if err != nil {
		return apperr.UnauthorizedErr("webhook rejected: " + err.Error())
	}

	claimed, prior, err := s.webhooks.Claim(ctx, event.ID, event.Type, rawBody)
	if err != nil {
		return apperr.Wrap(err)
	}
	if !claimed && prior != nil && prior.ProcessedAt != nil {
		s.log.Debug("duplicate webhook delivery ignored", zap.String("event_id", event.ID))
		return nil
	}
	// Unclaimed but unprocessed means an earlier attempt failed; retry it.

	if err := s.dispatch(ctx, event); err != nil {
		if mErr := s.webhooks.MarkFailed(ctx, event.ID, err.Error()); mErr != nil {
			s.log.Error("failed to record webhook failure", zap.String("event_id", event.ID), zap.Error(mErr))
		}
		return err
	}

	if err := s.webhooks.MarkProcessed(ctx, event.ID); err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *payments.WebhookEvent) error {
	switch event.Type {
	case payments.EventIntentSucceeded:
		return s.onIntentSucceeded(ctx, event)
	case payments.EventIntentFailed:
		return s.onIntentFailed(ctx, event)
	case payments.EventTransferFailed:
		return s.onTransferFailed(ctx, event)
	case payments.EventChargeRefunded:
		return s.onChargeRefunded(ctx, event)
	default:
		s.log.Debug("unhandled webhook event type", zap.String("type", event.Type))
		return nil
	}
}

type intentObject struct {
	ID       string `json:"id"`
	Metadata struct {
		OrderRef string `json:"order_ref"`
	} `json:"metadata"`
}

// onIntentSucceeded covers the lost-response case: the capture succeeded at
// the gateway but our synchronous MarkPaid never ran. The order ref rides
// in the intent metadata because the intent id may never have been stored.
func (s *WebhookService) onIntentSucceeded(ctx context.Context, event *payments.WebhookEvent) error {
	var obj intentObject
	if err := json.Unmarshal(event.Object, &obj); err != nil {
		return fmt.Errorf("decode intent object: %w", err)
	}
	if obj.Metadata.OrderRef == "" {
		// Not one of ours (e.g. a capture created outside this service).
		s.log.Warn("intent event without order ref", zap.String("intent_id", obj.ID))
		return nil
	}

	o, err := s.orders.GetByRef(ctx, obj.Metadata.OrderRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("intent %s references unknown order %s", obj.ID, obj.Metadata.OrderRef)
		}
		return err
	}

	if o.Status != models.OrderStatusPending {
		// Already paid (or moved further) via the synchronous path.
		return nil
	}

	ok, err := s.orders.MarkPaid(ctx, o.ID, obj.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost to the synchronous capture; nothing left to do.
		return nil
	}

	s.recordAction(ctx, "order_paid", o, map[string]any{"intent_id": obj.ID, "via": "webhook"})
	o.Status = models.OrderStatusPaid
	s.publish(ctx, events.EventOrderPaid, o)
	s.log.Info("order marked paid via webhook", zap.String("order_ref", o.Ref), zap.String("intent_id", obj.ID))
	return nil
}

// onIntentFailed is informational: a failed capture leaves the order
// pending, which is already its state. Recorded for the audit trail.
func (s *WebhookService) onIntentFailed(ctx context.Context, event *payments.WebhookEvent) error {
	var obj intentObject
	if err := json.Unmarshal(event.Object, &obj); err != nil {
		return fmt.Errorf("decode intent object: %w", err)
	}
	if obj.Metadata.OrderRef == "" {
		return nil
	}
	o, err := s.orders.GetByRef(ctx, obj.Metadata.OrderRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	s.recordAction(ctx, "capture_failed", o, map[string]any{"intent_id": obj.ID})
	return nil
}

type transferObject struct {
	ID       string `json:"id"`
	Metadata struct {
		OrderRef string `json:"order_ref"`
	} `json:"metadata"`
}

// onTransferFailed handles a payout that died after the synchronous call.
// If the order is still mid-release (a crash between claim and final write)
// the claim is reverted so the funds read as held again. A released order
// with a failed transfer is a books discrepancy that needs a human; it is
// flagged loudly, never auto-reverted.
func (s *WebhookService) onTransferFailed(ctx context.Context, event *payments.WebhookEvent) error {
	var obj transferObject
	if err := json.Unmarshal(event.Object, &obj); err != nil {
		return fmt.Errorf("decode transfer object: %w", err)
	}
	if obj.Metadata.OrderRef == "" {
		return nil
	}
	o, err := s.orders.GetByRef(ctx, obj.Metadata.OrderRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("transfer %s references unknown order %s", obj.ID, obj.Metadata.OrderRef)
		}
		return err
	}

	switch o.EscrowStatus {
	case models.EscrowStatusReleasing:
		if err := s.orders.RevertRelease(ctx, o.ID); err != nil {
			return err
		}
		s.recordAction(ctx, "release_reverted", o, map[string]any{"transfer_id": obj.ID})
		s.log.Warn("release reverted after transfer failure",
			zap.String("order_ref", o.Ref), zap.String("transfer_id", obj.ID))
	case models.EscrowStatusReleased:
		s.recordAction(ctx, "transfer_failed_after_release", o, map[string]any{"transfer_id": obj.ID})
		s.log.Error("transfer failed for an order already marked released; manual reconciliation required",
			zap.String("order_ref", o.Ref), zap.String("transfer_id", obj.ID))
	}
	return nil
}

type chargeObject struct {
	PaymentIntent string `json:"payment_intent"`
}

// onChargeRefunded reconciles refunds initiated at the gateway (e.g. through
// the processor dashboard) that bypassed our refund operation.
func (s *WebhookService) onChargeRefunded(ctx context.Context, event *payments.WebhookEvent) error {
	var obj chargeObject
	if err := json.Unmarshal(event.Object, &obj); err != nil {
		return fmt.Errorf("decode charge object: %w", err)
	}
	if obj.PaymentIntent == "" {
		return nil
	}
	o, err := s.orders.GetByPaymentIntent(ctx, obj.PaymentIntent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if o.Status == models.OrderStatusRefunded {
		return nil
	}

	expected := o.EscrowStatus
	if expected != models.EscrowStatusHeld && expected != models.EscrowStatusDisputed {
		s.log.Error("gateway refund for an order past escrow; manual reconciliation required",
			zap.String("order_ref", o.Ref), zap.String("escrow_status", o.EscrowStatus))
		return nil
	}
	ok, err := s.orders.MarkRefunded(ctx, o.ID, expected, event.ID, "gateway_initiated")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.recordAction(ctx, "order_refunded", o, map[string]any{"via": "webhook"})
	o.Status = models.OrderStatusRefunded
	s.publish(ctx, events.EventOrderRefunded, o)
	s.log.Info("order refunded via gateway-initiated refund", zap.String("order_ref", o.Ref))
	return nil
}

func (s *WebhookService) recordAction(ctx context.Context, action string, o *models.Order, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["ref"] = o.Ref
	err := s.audit.Log(ctx, models.AuditLog{
		ActorType:  "gateway",
		Action:     action,
		EntityType: "order",
		EntityID:   &o.ID,
		Meta:       meta,
	})
	if err != nil {
		s.log.Error("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *WebhookService) publish(ctx context.Context, eventType string, o *models.Order) {
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
