package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/repositories"
)

// Store interfaces mirror the repository methods each service touches,
// so services can be exercised against in-memory fakes.

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByRef(ctx context.Context, ref string) (*models.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	List(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, intentID string) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, from string) (bool, error)
	ClaimRelease(ctx context.Context, id uuid.UUID) (bool, error)
	MarkReleased(ctx context.Context, id uuid.UUID, transferID string) (bool, error)
	RevertRelease(ctx context.Context, id uuid.UUID) error
	MarkDisputed(ctx context.Context, id uuid.UUID, from, reason string) (bool, error)
	ClaimResolveRelease(ctx context.Context, id uuid.UUID) (bool, error)
	RevertResolveRelease(ctx context.Context, id uuid.UUID) error
	MarkRefunded(ctx context.Context, id uuid.UUID, expectedEscrow, refundID, reasonCode string) (bool, error)
	CancelPending(ctx context.Context, id uuid.UUID) (bool, error)
	GetStalePending(ctx context.Context, olderThan time.Duration) ([]models.Order, error)
	CreateDeliverable(ctx context.Context, d *models.Deliverable) error
	GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error)
	ListDeliverables(ctx context.Context, orderID uuid.UUID) ([]models.Deliverable, error)
	ReviewDeliverable(ctx context.Context, id, reviewerID uuid.UUID, status, notes string) (bool, error)
	DeleteDeliverable(ctx context.Context, id uuid.UUID) (bool, error)
}

type RequestStore interface {
	Create(ctx context.Context, pr *models.PaymentRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	GetByRef(ctx context.Context, ref string) (*models.PaymentRequest, error)
	List(ctx context.Context, f repositories.RequestFilter) ([]models.PaymentRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	MarkResponded(ctx context.Context, id uuid.UUID, to string) (bool, error)
	AttachOrder(ctx context.Context, id, orderID uuid.UUID) (bool, error)
}

type WebhookStore interface {
	Claim(ctx context.Context, providerEventID, eventType string, payload []byte) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, providerEventID string) error
	MarkFailed(ctx context.Context, providerEventID, reason string) error
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetPayoutAccount(ctx context.Context, id uuid.UUID, accountRef string) error
	ClearPayoutAccount(ctx context.Context, id uuid.UUID) error
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}
