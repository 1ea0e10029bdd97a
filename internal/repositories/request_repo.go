package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/judicature/backend/internal/models"
)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

const requestColumns = `
	id, ref, proposer_id, counterparty_id, amount, currency, service_type,
	description, urgency, eta_days, status, order_id,
	expires_at, created_at, updated_at, responded_at`

func scanRequest(row pgx.Row) (*models.PaymentRequest, error) {
	var pr models.PaymentRequest
	err := row.Scan(
		&pr.ID, &pr.Ref, &pr.ProposerID, &pr.CounterpartyID, &pr.Amount, &pr.Currency, &pr.ServiceType,
		&pr.Description, &pr.Urgency, &pr.EtaDays, &pr.Status, &pr.OrderID,
		&pr.ExpiresAt, &pr.CreatedAt, &pr.UpdatedAt, &pr.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *RequestRepo) Create(ctx context.Context, pr *models.PaymentRequest) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_requests (ref, proposer_id, counterparty_id, amount, currency,
		                              service_type, description, urgency, eta_days, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, pr.Ref, pr.ProposerID, pr.CounterpartyID, pr.Amount, pr.Currency,
		pr.ServiceType, pr.Description, pr.Urgency, pr.EtaDays, pr.Status, pr.ExpiresAt,
	).Scan(&pr.ID, &pr.CreatedAt, &pr.UpdatedAt)
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1`, id))
}

func (r *RequestRepo) GetByRef(ctx context.Context, ref string) (*models.PaymentRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE ref = $1`, ref))
}

type RequestFilter struct {
	ProposerID     *uuid.UUID
	CounterpartyID *uuid.UUID
	ParticipantID  *uuid.UUID
	Status         *string
	Limit          int
	Offset         int
}

func (r *RequestRepo) List(ctx context.Context, f RequestFilter) ([]models.PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ProposerID != nil {
		where = append(where, fmt.Sprintf("proposer_id = $%d", argIdx))
		args = append(args, *f.ProposerID)
		argIdx++
	}
	if f.CounterpartyID != nil {
		where = append(where, fmt.Sprintf("counterparty_id = $%d", argIdx))
		args = append(args, *f.CounterpartyID)
		argIdx++
	}
	if f.ParticipantID != nil {
		where = append(where, fmt.Sprintf("(proposer_id = $%d OR counterparty_id = $%d)", argIdx, argIdx))
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

	var requests []models.PaymentRequest
	for rows.Next() {
		var pr models.PaymentRequest
		if err := rows.Scan(
			&pr.ID, &pr.Ref, &pr.ProposerID, &pr.CounterpartyID, &pr.Amount, &pr.Currency, &pr.ServiceType,
			&pr.Description, &pr.Urgency, &pr.EtaDays, &pr.Status, &pr.OrderID,
			&pr.ExpiresAt, &pr.CreatedAt, &pr.UpdatedAt, &pr.RespondedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, nil
}

// TransitionStatus moves a request between statuses conditionally.
func (r *RequestRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_requests SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkResponded records the counterparty's decision with its timestamp.
func (r *RequestRepo) MarkResponded(ctx context.Context, id uuid.UUID, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_requests SET status = $1, responded_at = now(), updated_at = now()
		WHERE id = $2 AND status = 'pending'
	`, to, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AttachOrder links the one order a request may ever produce. The
// order_id IS NULL condition makes concurrent proceed calls race safely:
// exactly one attaches, the rest re-read and reuse the attached order.
func (r *RequestRepo) AttachOrder(ctx context.Context, id, orderID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_requests SET order_id = $1, updated_at = now()
		WHERE id = $2 AND order_id IS NULL AND status = 'accepted'
	`, orderID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
