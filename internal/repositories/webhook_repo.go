package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/judicature/backend/internal/models"
)

// WebhookRepo persists webhook dedup records. Claim is an atomic
// check-and-insert: the unique provider_event_id makes concurrent
// deliveries of the same event race safely.
type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Claim inserts a dedup record for the event, returning whether this caller
// inserted it (claimed=true) and the prior record when it already existed.
func (r *WebhookRepo) Claim(ctx context.Context, providerEventID, eventType string, payload []byte) (bool, *models.WebhookEvent, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (provider_event_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_event_id) DO NOTHING
	`, providerEventID, eventType, payload)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	var e models.WebhookEvent
	err = r.pool.QueryRow(ctx, `
		SELECT id, provider_event_id, event_type, payload, processed_at, processing_error, created_at
		FROM webhook_events WHERE provider_event_id = $1
	`, providerEventID).Scan(&e.ID, &e.ProviderEventID, &e.EventType, &e.Payload, &e.ProcessedAt, &e.ProcessingError, &e.CreatedAt)
	if err != nil {
		return false, nil, err
	}
	return false, &e, nil
}

// MarkProcessed records a successful apply; redeliveries become no-ops.
func (r *WebhookRepo) MarkProcessed(ctx context.Context, providerEventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET processed_at = now(), processing_error = NULL
		WHERE provider_event_id = $1
	`, providerEventID)
	return err
}

// MarkFailed leaves processed_at NULL so the gateway's redelivery retries.
func (r *WebhookRepo) MarkFailed(ctx context.Context, providerEventID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET processing_error = $1
		WHERE provider_event_id = $2
	`, reason, providerEventID)
	return err
}

// PurgeOlderThan drops dedup records past the retention window.
func (r *WebhookRepo) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM webhook_events WHERE created_at < now() - ($1 || ' seconds')::interval
	`, fmt.Sprintf("%d", int(retention.Seconds())))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
