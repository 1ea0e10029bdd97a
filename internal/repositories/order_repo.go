package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/judicature/backend/internal/models"
)

// OrderRepo is the ledger store for orders and their deliverables. Every
// status write is a conditional update ("UPDATE ... WHERE status = expected")
// whose affected-row count tells the caller whether it won the transition.
type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `
	id, ref, payer_id, payee_id, amount, currency, platform_fee, payee_net,
	status, escrow_status, description,
	payment_intent_id, transfer_id, refund_id, capture_key,
	dispute_reason, refund_reason_code,
	created_at, updated_at, paid_at, completed_at, released_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.Ref, &o.PayerID, &o.PayeeID, &o.Amount, &o.Currency, &o.PlatformFee, &o.PayeeNet,
		&o.Status, &o.EscrowStatus, &o.Description,
		&o.PaymentIntentID, &o.TransferID, &o.RefundID, &o.CaptureKey,
		&o.DisputeReason, &o.RefundReasonCode,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.CompletedAt, &o.ReleasedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO orders (ref, payer_id, payee_id, amount, currency, platform_fee, payee_net,
		                    status, escrow_status, description, capture_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, o.Ref, o.PayerID, o.PayeeID, o.Amount, o.Currency, o.PlatformFee, o.PayeeNet,
		o.Status, o.EscrowStatus, o.Description, o.CaptureKey,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *OrderRepo) GetByRef(ctx context.Context, ref string) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE ref = $1`, ref))
}

func (r *OrderRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID))
}

type OrderFilter struct {
	PayerID       *uuid.UUID
	PayeeID       *uuid.UUID
	ParticipantID *uuid.UUID // payer or payee
	Status        *string
	Limit         int
	Offset        int
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.PayerID != nil {
		where = append(where, fmt.Sprintf("payer_id = $%d", argIdx))
		args = append(args, *f.PayerID)
		argIdx++
	}
	if f.PayeeID != nil {
		where = append(where, fmt.Sprintf("payee_id = $%d", argIdx))
		args = append(args, *f.PayeeID)
		argIdx++
	}
	if f.ParticipantID != nil {
		where = append(where, fmt.Sprintf("(payer_id = $%d OR payee_id = $%d)", argIdx, argIdx))
		args = append(args, *f.ParticipantID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.Ref, &o.PayerID, &o.PayeeID, &o.Amount, &o.Currency, &o.PlatformFee, &o.PayeeNet,
			&o.Status, &o.EscrowStatus, &o.Description,
			&o.PaymentIntentID, &o.TransferID, &o.RefundID, &o.CaptureKey,
			&o.DisputeReason, &o.RefundReasonCode,
			&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.CompletedAt, &o.ReleasedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another; returns false
// if the order was no longer in the expected source status.
func (r *OrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaid records a successful capture: pending -> paid with the intent id.
func (r *OrderRepo) MarkPaid(ctx context.Context, id uuid.UUID, intentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'paid', payment_intent_id = $1, paid_at = now(), updated_at = now()
		WHERE id = $2 AND status = 'pending'
	`, intentID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted sets the completion timestamp alongside the status move.
func (r *OrderRepo) MarkCompleted(ctx context.Context, id uuid.UUID, from string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimRelease takes the transient releasing claim. Exactly one caller wins;
// a concurrent dispute or second release attempt sees zero rows.
func (r *OrderRepo) ClaimRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET escrow_status = 'releasing', updated_at = now()
		WHERE id = $1 AND status = 'completed' AND escrow_status = 'held'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkReleased finalizes a release after the gateway confirmed the transfer.
func (r *OrderRepo) MarkReleased(ctx context.Context, id uuid.UUID, transferID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET escrow_status = 'released', transfer_id = $1, released_at = now(), updated_at = now()
		WHERE id = $2 AND escrow_status = 'releasing'
	`, transferID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevertRelease returns the claim after a failed transfer; funds stay held.
func (r *OrderRepo) RevertRelease(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET escrow_status = 'held', updated_at = now()
		WHERE id = $1 AND escrow_status = 'releasing'
	`, id)
	return err
}

// MarkDisputed freezes the order on both axes. Requires funds still held so
// a dispute can never land after release.
func (r *OrderRepo) MarkDisputed(ctx context.Context, id uuid.UUID, from, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'disputed', escrow_status = 'disputed', dispute_reason = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND escrow_status = 'held'
	`, reason, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimResolveRelease moves a disputed order to completed while taking the
// releasing claim, so the payee-favor payout serializes like a normal release.
func (r *OrderRepo) ClaimResolveRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'completed', escrow_status = 'releasing',
		       completed_at = COALESCE(completed_at, now()), updated_at = now()
		WHERE id = $1 AND status = 'disputed' AND escrow_status = 'disputed'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevertResolveRelease puts a failed payee-favor resolution back in dispute.
func (r *OrderRepo) RevertResolveRelease(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'disputed', escrow_status = 'disputed', updated_at = now()
		WHERE id = $1 AND escrow_status = 'releasing'
	`, id)
	return err
}

// MarkRefunded finalizes a refund from either held or disputed custody.
func (r *OrderRepo) MarkRefunded(ctx context.Context, id uuid.UUID, expectedEscrow, refundID, reasonCode string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'refunded', escrow_status = 'refunded',
		       refund_id = $1, refund_reason_code = $2, updated_at = now()
		WHERE id = $3 AND escrow_status = $4
	`, refundID, reasonCode, id, expectedEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelPending cancels an order that never captured funds.
func (r *OrderRepo) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetStalePending returns pending orders older than the abandonment window.
func (r *OrderRepo) GetStalePending(ctx context.Context, olderThan time.Duration) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'pending' AND created_at < now() - ($1 || ' seconds')::interval
	`, fmt.Sprintf("%d", int(olderThan.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.Ref, &o.PayerID, &o.PayeeID, &o.Amount, &o.Currency, &o.PlatformFee, &o.PayeeNet,
			&o.Status, &o.EscrowStatus, &o.Description,
			&o.PaymentIntentID, &o.TransferID, &o.RefundID, &o.CaptureKey,
			&o.DisputeReason, &o.RefundReasonCode,
			&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.CompletedAt, &o.ReleasedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ---- Deliverables ----

// CreateDeliverable is append-only: deliverables are never rewritten, a
// rejected one is superseded by a new row.
func (r *OrderRepo) CreateDeliverable(ctx context.Context, d *models.Deliverable) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deliverables (order_id, file_ref, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, d.OrderID, d.FileRef, d.Status).Scan(&d.ID, &d.CreatedAt)
}

func (r *OrderRepo) GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error) {
	var d models.Deliverable
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, file_ref, status, reviewer_id, review_notes, reviewed_at, created_at
		FROM deliverables WHERE id = $1
	`, id).Scan(&d.ID, &d.OrderID, &d.FileRef, &d.Status, &d.ReviewerID, &d.ReviewNotes, &d.ReviewedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *OrderRepo) ListDeliverables(ctx context.Context, orderID uuid.UUID) ([]models.Deliverable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, file_ref, status, reviewer_id, review_notes, reviewed_at, created_at
		FROM deliverables WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Deliverable
	for rows.Next() {
		var d models.Deliverable
		if err := rows.Scan(&d.ID, &d.OrderID, &d.FileRef, &d.Status, &d.ReviewerID, &d.ReviewNotes, &d.ReviewedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, nil
}

// ReviewDeliverable records the review decision exactly once: the conditional
// on pending status makes a second review lose instead of overwriting.
func (r *OrderRepo) ReviewDeliverable(ctx context.Context, id, reviewerID uuid.UUID, status, notes string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deliverables SET status = $1, reviewer_id = $2, review_notes = $3, reviewed_at = now()
		WHERE id = $4 AND status = 'pending'
	`, status, reviewerID, notes, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteDeliverable removes a deliverable, permitted only while pending.
func (r *OrderRepo) DeleteDeliverable(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM deliverables WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
