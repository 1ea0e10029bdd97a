package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/rbac"
)

func newUserService() (*UserService, *fakeUserStore, *fakeAudit) {
	users := newFakeUserStore()
	audit := &fakeAudit{}
	return NewUserService(users, audit, zap.NewNop()), users, audit
}

func TestPayoutAccountLifecycle(t *testing.T) {
	svc, users, audit := newUserService()
	ctx := context.Background()
	lawyer := Actor{ID: users.add(rbac.RoleLawyer, ""), Role: rbac.RoleLawyer}

	ref, err := svc.GetPayoutAccount(ctx, lawyer)
	if err != nil {
		t.Fatalf("GetPayoutAccount: %v", err)
	}
	if ref != nil {
		t.Fatalf("expected no account before connect, got %q", *ref)
	}

	if _, err := svc.SetPayoutAccount(ctx, lawyer, "acct_lawyer_1"); err != nil {
		t.Fatalf("SetPayoutAccount: %v", err)
	}
	ref, err = svc.GetPayoutAccount(ctx, lawyer)
	if err != nil {
		t.Fatalf("GetPayoutAccount after connect: %v", err)
	}
	if ref == nil || *ref != "acct_lawyer_1" {
		t.Fatalf("expected connected account acct_lawyer_1, got %v", ref)
	}

	if _, err := svc.ClearPayoutAccount(ctx, lawyer); err != nil {
		t.Fatalf("ClearPayoutAccount: %v", err)
	}
	ref, err = svc.GetPayoutAccount(ctx, lawyer)
	if err != nil {
		t.Fatalf("GetPayoutAccount after disconnect: %v", err)
	}
	if ref != nil {
		t.Fatalf("expected account cleared, got %q", *ref)
	}

	got := audit.actions()
	want := []string{"payout_account_connected", "payout_account_disconnected"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("audit actions = %v, want %v", got, want)
	}
}

func TestPayoutAccountLawyerOnly(t *testing.T) {
	svc, users, _ := newUserService()
	ctx := context.Background()
	client := Actor{ID: users.add(rbac.RoleClient, ""), Role: rbac.RoleClient}

	if _, err := svc.GetPayoutAccount(ctx, client); !apperr.IsKind(err, apperr.Forbidden) {
		t.Fatalf("GetPayoutAccount by client: got %v, want forbidden", err)
	}
	if _, err := svc.SetPayoutAccount(ctx, client, "acct_x"); !apperr.IsKind(err, apperr.Forbidden) {
		t.Fatalf("SetPayoutAccount by client: got %v, want forbidden", err)
	}
	if _, err := svc.ClearPayoutAccount(ctx, client); !apperr.IsKind(err, apperr.Forbidden) {
		t.Fatalf("ClearPayoutAccount by client: got %v, want forbidden", err)
	}
}

func TestSetPayoutAccountValidatesRef(t *testing.T) {
	svc, users, _ := newUserService()
	ctx := context.Background()
	lawyer := Actor{ID: users.add(rbac.RoleLawyer, ""), Role: rbac.RoleLawyer}

	if _, err := svc.SetPayoutAccount(ctx, lawyer, "not-an-account"); !apperr.IsKind(err, apperr.Invalid) {
		t.Fatalf("expected validation error for malformed ref, got %v", err)
	}
}
