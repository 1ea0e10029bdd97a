package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/payments"
	"github.com/judicature/backend/internal/repositories"
)

// In-memory stores mirroring the repositories' conditional-update
// semantics: every transition checks the expected current state and
// reports whether it won.

type fakeOrderStore struct {
	mu           sync.Mutex
	orders       map[uuid.UUID]*models.Order
	deliverables map[uuid.UUID]*models.Deliverable
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:       make(map[uuid.UUID]*models.Order),
		deliverables: make(map[uuid.UUID]*models.Deliverable),
	}
}

func (s *fakeOrderStore) Create(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetByRef(ctx context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Ref == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeOrderStore) GetByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeOrderStore) List(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if f.ParticipantID != nil && o.PayerID != *f.ParticipantID && o.PayeeID != *f.ParticipantID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *fakeOrderStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *fakeOrderStore) MarkPaid(ctx context.Context, id uuid.UUID, intentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusPaid
	o.PaymentIntentID = &intentID
	o.PaidAt = &now
	return true, nil
}

func (s *fakeOrderStore) MarkCompleted(ctx context.Context, id uuid.UUID, from string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusCompleted
	o.CompletedAt = &now
	return true, nil
}

func (s *fakeOrderStore) ClaimRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderStatusCompleted || o.EscrowStatus != models.EscrowStatusHeld {
		return false, nil
	}
	o.EscrowStatus = models.EscrowStatusReleasing
	return true, nil
}

func (s *fakeOrderStore) MarkReleased(ctx context.Context, id uuid.UUID, transferID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.EscrowStatus != models.EscrowStatusReleasing {
		return false, nil
	}
	now := time.Now()
	o.EscrowStatus = models.EscrowStatusReleased
	o.TransferID = &transferID
	o.ReleasedAt = &now
	return true, nil
}

func (s *fakeOrderStore) RevertRelease(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if o.EscrowStatus == models.EscrowStatusReleasing {
		o.EscrowStatus = models.EscrowStatusHeld
	}
	return nil
}

func (s *fakeOrderStore) MarkDisputed(ctx context.Context, id uuid.UUID, from, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from || o.EscrowStatus != models.EscrowStatusHeld {
		return false, nil
	}
	o.Status = models.OrderStatusDisputed
	o.EscrowStatus = models.EscrowStatusDisputed
	o.DisputeReason = &reason
	return true, nil
}

func (s *fakeOrderStore) ClaimResolveRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderStatusDisputed || o.EscrowStatus != models.EscrowStatusDisputed {
		return false, nil
	}
	o.Status = models.OrderStatusCompleted
	o.EscrowStatus = models.EscrowStatusReleasing
	return true, nil
}

func (s *fakeOrderStore) RevertResolveRelease(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if o.EscrowStatus == models.EscrowStatusReleasing {
		o.Status = models.OrderStatusDisputed
		o.EscrowStatus = models.EscrowStatusDisputed
	}
	return nil
}

func (s *fakeOrderStore) MarkRefunded(ctx context.Context, id uuid.UUID, expectedEscrow, refundID, reasonCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.EscrowStatus != expectedEscrow {
		return false, nil
	}
	o.Status = models.OrderStatusRefunded
	o.EscrowStatus = models.EscrowStatusRefunded
	o.RefundID = &refundID
	o.RefundReasonCode = &reasonCode
	return true, nil
}

func (s *fakeOrderStore) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusCancelled
	return true, nil
}

func (s *fakeOrderStore) GetStalePending(ctx context.Context, olderThan time.Duration) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	cutoff := time.Now().Add(-olderThan)
	for _, o := range s.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) CreateDeliverable(ctx context.Context, d *models.Deliverable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	s.deliverables[d.ID] = &cp
	return nil
}

func (s *fakeOrderStore) GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliverables[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (s *fakeOrderStore) ListDeliverables(ctx context.Context, orderID uuid.UUID) ([]models.Deliverable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deliverable
	for _, d := range s.deliverables {
		if d.OrderID == orderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) ReviewDeliverable(ctx context.Context, id, reviewerID uuid.UUID, status, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliverables[id]
	if !ok || d.Status != models.DeliverableStatusPending {
		return false, nil
	}
	now := time.Now()
	d.Status = status
	d.ReviewerID = &reviewerID
	d.ReviewNotes = &notes
	d.ReviewedAt = &now
	return true, nil
}

func (s *fakeOrderStore) DeleteDeliverable(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliverables[id]
	if !ok || d.Status != models.DeliverableStatusPending {
		return false, nil
	}
	delete(s.deliverables, id)
	return true, nil
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.PaymentRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*models.PaymentRequest)}
}

func (s *fakeRequestStore) Create(ctx context.Context, pr *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr.ID = uuid.New()
	pr.CreatedAt = time.Now()
	pr.UpdatedAt = pr.CreatedAt
	cp := *pr
	s.requests[pr.ID] = &cp
	return nil
}

func (s *fakeRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *pr
	return &cp, nil
}

func (s *fakeRequestStore) GetByRef(ctx context.Context, ref string) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pr := range s.requests {
		if pr.Ref == ref {
			cp := *pr
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeRequestStore) List(ctx context.Context, f repositories.RequestFilter) ([]models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentRequest
	for _, pr := range s.requests {
		if f.ParticipantID != nil && pr.ProposerID != *f.ParticipantID && pr.CounterpartyID != *f.ParticipantID {
			continue
		}
		if f.Status != nil && pr.Status != *f.Status {
			continue
		}
		out = append(out, *pr)
	}
	return out, nil
}

func (s *fakeRequestStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok || pr.Status != from {
		return false, nil
	}
	pr.Status = to
	return true, nil
}

func (s *fakeRequestStore) MarkResponded(ctx context.Context, id uuid.UUID, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok || pr.Status != models.RequestStatusPending {
		return false, nil
	}
	now := time.Now()
	pr.Status = to
	pr.RespondedAt = &now
	return true, nil
}

func (s *fakeRequestStore) AttachOrder(ctx context.Context, id, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok || pr.OrderID != nil || pr.Status != models.RequestStatusAccepted {
		return false, nil
	}
	pr.OrderID = &orderID
	return true, nil
}

type fakeWebhookStore struct {
	mu      sync.Mutex
	records map[string]*models.WebhookEvent
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{records: make(map[string]*models.WebhookEvent)}
}

func (s *fakeWebhookStore) Claim(ctx context.Context, providerEventID, eventType string, payload []byte) (bool, *models.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[providerEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	s.records[providerEventID] = &models.WebhookEvent{
		ID:              uuid.New(),
		ProviderEventID: providerEventID,
		EventType:       eventType,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}
	return true, nil, nil
}

func (s *fakeWebhookStore) MarkProcessed(ctx context.Context, providerEventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[providerEventID]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	rec.ProcessedAt = &now
	rec.ProcessingError = nil
	return nil
}

func (s *fakeWebhookStore) MarkFailed(ctx context.Context, providerEventID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[providerEventID]
	if !ok {
		return pgx.ErrNoRows
	}
	rec.ProcessingError = &reason
	return nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) add(role string, payoutRef string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	u := &models.User{ID: id, Email: id.String() + "@example.com", Role: role}
	if payoutRef != "" {
		u.PayoutAccountRef = &payoutRef
	}
	s.users[id] = u
	return id
}

func (s *fakeUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.LastActiveAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeUserStore) SetPayoutAccount(ctx context.Context, id uuid.UUID, accountRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PayoutAccountRef = &accountRef
	return nil
}

func (s *fakeUserStore) ClearPayoutAccount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PayoutAccountRef = nil
	return nil
}

func (s *fakeUserStore) UpdateLastActive(ctx context.Context, id uuid.UUID) error { return nil }

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Log(ctx context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeGateway records calls and replays results by idempotency key, like
// the real processor does.
type fakeGateway struct {
	mu            sync.Mutex
	failCapture   *payments.GatewayError
	failTransfer  *payments.GatewayError
	failRefund    *payments.GatewayError
	captureStatus string // overrides the intent status when set
	captureCalls  int
	transferCalls int
	refundCalls   int
	intents       map[string]*payments.IntentResult
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*payments.IntentResult)}
}

func (g *fakeGateway) CreateAndConfirmIntent(ctx context.Context, p payments.IntentParams) (*payments.IntentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.failCapture != nil {
		return nil, g.failCapture
	}
	if res, ok := g.intents[p.IdempotencyKey]; ok {
		return res, nil
	}
	status := payments.StatusSucceeded
	if g.captureStatus != "" {
		status = g.captureStatus
	}
	res := &payments.IntentResult{
		IntentID: fmt.Sprintf("pi_%s", p.IdempotencyKey),
		Status:   status,
	}
	g.intents[p.IdempotencyKey] = res
	return res, nil
}

func (g *fakeGateway) CreateTransfer(ctx context.Context, p payments.TransferParams) (*payments.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	if g.failTransfer != nil {
		return nil, g.failTransfer
	}
	return &payments.TransferResult{
		TransferID: fmt.Sprintf("tr_%s", p.IdempotencyKey),
		Status:     payments.StatusSucceeded,
	}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, p payments.RefundParams) (*payments.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.failRefund != nil {
		return nil, g.failRefund
	}
	return &payments.RefundResult{
		RefundID: fmt.Sprintf("re_%s", p.IdempotencyKey),
		Status:   payments.StatusSucceeded,
	}, nil
}
