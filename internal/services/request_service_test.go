package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/payments"
	"github.com/judicature/backend/internal/rbac"
)

type requestFixture struct {
	svc     *RequestService
	orders  *OrderService
	store   *fakeRequestStore
	ostore  *fakeOrderStore
	users   *fakeUserStore
	gateway *fakeGateway
	lawyer  Actor
	client  Actor
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	store := newFakeRequestStore()
	ostore := newFakeOrderStore()
	users := newFakeUserStore()
	gateway := newFakeGateway()
	audit := &fakeAudit{}
	cfg := testConfig()
	log := zap.NewNop()

	lawyerID := users.add(rbac.RoleLawyer, "acct_test_lawyer")
	clientID := users.add(rbac.RoleClient, "")

	orders := NewOrderService(ostore, users, audit, gateway, nil, cfg, log)
	svc := NewRequestService(store, orders, users, audit, nil, cfg, log)
	return &requestFixture{
		svc:     svc,
		orders:  orders,
		store:   store,
		ostore:  ostore,
		users:   users,
		gateway: gateway,
		lawyer:  Actor{ID: lawyerID, Role: rbac.RoleLawyer},
		client:  Actor{ID: clientID, Role: rbac.RoleClient},
	}
}

func (f *requestFixture) createRequest(t *testing.T) *models.PaymentRequest {
	t.Helper()
	pr, err := f.svc.CreateRequest(context.Background(), f.lawyer, CreateRequestInput{
		CounterpartyID: f.client.ID,
		Amount:         25000,
		Currency:       "usd",
		ServiceType:    models.ServiceTypeContractReview,
		Description:    "review of a commercial lease agreement",
		Urgency:        models.UrgencyStandard,
		EtaDays:        5,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return pr
}

func (f *requestFixture) acceptedRequest(t *testing.T) *models.PaymentRequest {
	t.Helper()
	pr := f.createRequest(t)
	pr, err := f.svc.Respond(context.Background(), pr.ID, f.client, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	return pr
}

func TestCreateRequest_SetsExpiry(t *testing.T) {
	f := newRequestFixture(t)
	pr := f.createRequest(t)

	if pr.Status != models.RequestStatusPending {
		t.Errorf("status = %s", pr.Status)
	}
	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	if diff := pr.ExpiresAt.Sub(wantExpiry); diff > time.Minute || diff < -time.Minute {
		t.Errorf("expires_at off by %v", diff)
	}
	if !strings.HasPrefix(pr.Ref, "REQ-") {
		t.Errorf("ref = %q", pr.Ref)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	base := CreateRequestInput{
		CounterpartyID: f.client.ID,
		Amount:         25000,
		Currency:       "usd",
		ServiceType:    models.ServiceTypeConsultation,
		Description:    "initial consultation on a labor matter",
		EtaDays:        3,
	}

	in := base
	in.Description = "too short"
	if _, err := f.svc.CreateRequest(ctx, f.lawyer, in); !apperr.IsKind(err, apperr.Invalid) {
		t.Errorf("short description: got %v", err)
	}

	in = base
	in.Description = strings.Repeat("x", 501)
	if _, err := f.svc.CreateRequest(ctx, f.lawyer, in); !apperr.IsKind(err, apperr.Invalid) {
		t.Errorf("long description: got %v", err)
	}

	in = base
	in.Amount = 50
	if _, err := f.svc.CreateRequest(ctx, f.lawyer, in); !apperr.IsKind(err, apperr.Invalid) {
		t.Errorf("low amount: got %v", err)
	}

	in = base
	in.ServiceType = "fortune_telling"
	if _, err := f.svc.CreateRequest(ctx, f.lawyer, in); !apperr.IsKind(err, apperr.Invalid) {
		t.Errorf("bad service type: got %v", err)
	}

	// Clients cannot propose engagements
	if _, err := f.svc.CreateRequest(ctx, f.client, base); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("client creating request: got %v", err)
	}
}

func TestRespond_AcceptAndReject(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	pr := f.createRequest(t)
	pr, err := f.svc.Respond(ctx, pr.ID, f.client, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if pr.Status != models.RequestStatusAccepted {
		t.Errorf("status = %s", pr.Status)
	}
	if pr.RespondedAt == nil {
		t.Error("responded_at not stamped")
	}

	// Responses are final
	if _, err := f.svc.Respond(ctx, pr.ID, f.client, false); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("second response: got %v", err)
	}
}

func TestRespond_OnlyCounterparty(t *testing.T) {
	f := newRequestFixture(t)
	pr := f.createRequest(t)

	if _, err := f.svc.Respond(context.Background(), pr.ID, f.lawyer, true); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("proposer responding to own request: got %v", err)
	}
}

func TestRespond_ExpiredRequest(t *testing.T) {
	f := newRequestFixture(t)
	pr := f.createRequest(t)

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	if _, err := f.svc.Respond(context.Background(), pr.ID, f.client, true); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("responding to expired request: got %v", err)
	}

	got, _ := f.store.GetByID(context.Background(), pr.ID)
	if got.Status != models.RequestStatusPending {
		t.Errorf("expired request status mutated to %s", got.Status)
	}
}

func TestProceedWithPayment_CreatesAndPaysOrder(t *testing.T) {
	f := newRequestFixture(t)
	pr := f.acceptedRequest(t)

	pr, o, err := f.svc.ProceedWithPayment(context.Background(), pr.ID, f.client, "pm_card")
	if err != nil {
		t.Fatalf("ProceedWithPayment: %v", err)
	}
	if pr.Status != models.RequestStatusPaid {
		t.Errorf("request status = %s", pr.Status)
	}
	if pr.OrderID == nil || *pr.OrderID != o.ID {
		t.Error("order not attached to request")
	}
	if o.Status != models.OrderStatusPaid || o.EscrowStatus != models.EscrowStatusHeld {
		t.Errorf("order state = %s/%s", o.Status, o.EscrowStatus)
	}
	if o.PayerID != f.client.ID || o.PayeeID != f.lawyer.ID {
		t.Error("order parties inverted")
	}
	if o.Amount != pr.Amount {
		t.Errorf("order amount = %d, want %d", o.Amount, pr.Amount)
	}
}

func TestProceedWithPayment_CaptureFailureKeepsOneOrder(t *testing.T) {
	f := newRequestFixture(t)
	pr := f.acceptedRequest(t)
	ctx := context.Background()
	f.gateway.failCapture = &payments.GatewayError{Code: "card_declined", Message: "declined"}

	if _, _, err := f.svc.ProceedWithPayment(ctx, pr.ID, f.client, "pm_card"); !apperr.IsKind(err, apperr.Gateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	got, _ := f.store.GetByID(ctx, pr.ID)
	if got.Status != models.RequestStatusAccepted {
		t.Errorf("request status = %s, want accepted after failed capture", got.Status)
	}
	if got.OrderID == nil {
		t.Fatal("order should stay attached so a retry reuses it")
	}
	firstOrderID := *got.OrderID

	// Retry after the gateway recovers: same order, no second mint.
	f.gateway.failCapture = nil
	pr2, o, err := f.svc.ProceedWithPayment(ctx, pr.ID, f.client, "pm_card")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if o.ID != firstOrderID {
		t.Error("retry minted a second order")
	}
	if pr2.Status != models.RequestStatusPaid {
		t.Errorf("request status = %s", pr2.Status)
	}
	if len(f.ostore.orders) != 1 {
		t.Errorf("order count = %d, want exactly one per request", len(f.ostore.orders))
	}
}

func TestProceedWithPayment_OnlyWhileAccepted(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	pending := f.createRequest(t)
	if _, _, err := f.svc.ProceedWithPayment(ctx, pending.ID, f.client, "pm_card"); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("paying a pending request: got %v", err)
	}

	pr := f.acceptedRequest(t)
	if _, _, err := f.svc.ProceedWithPayment(ctx, pr.ID, f.client, "pm_card"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, _, err := f.svc.ProceedWithPayment(ctx, pr.ID, f.client, "pm_card"); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("paying twice: got %v", err)
	}
}

func TestCancelRequest_ProposerAndPendingOnly(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	pr := f.createRequest(t)
	if _, err := f.svc.CancelRequest(ctx, pr.ID, f.client); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("counterparty cancelling: got %v", err)
	}

	cancelled, err := f.svc.CancelRequest(ctx, pr.ID, f.lawyer)
	if err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}
	if cancelled.Status != models.RequestStatusCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}

	accepted := f.acceptedRequest(t)
	if _, err := f.svc.CancelRequest(ctx, accepted.ID, f.lawyer); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("cancelling accepted request: got %v", err)
	}
}

func TestGetRequest_RollsForwardCompletion(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	pr := f.acceptedRequest(t)
	pr, o, err := f.svc.ProceedWithPayment(ctx, pr.ID, f.client, "pm_card")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	// Walk the order to completed+released.
	d, err := f.orders.SubmitDeliverable(ctx, o.ID, f.lawyer, "blob://opinion.pdf")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.orders.ReviewDeliverable(ctx, d.ID, f.client, true, ""); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := f.orders.ReleaseFunds(ctx, o.ID, f.client); err != nil {
		t.Fatalf("release: %v", err)
	}

	pr, err = f.svc.GetRequest(ctx, pr.ID, f.client)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if pr.Status != models.RequestStatusCompleted {
		t.Errorf("request status = %s, want completed after release", pr.Status)
	}
}
