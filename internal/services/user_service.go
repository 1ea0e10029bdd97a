package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/rbac"
)

type UserService struct {
	users UserStore
	audit AuditLogger
	log   *zap.Logger
}

func NewUserService(users UserStore, audit AuditLogger, log *zap.Logger) *UserService {
	return &UserService{users: users, audit: audit, log: log}
}

func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundErr("user not found")
		}
		return nil, apperr.Wrap(err)
	}
	return u, nil
}

// GetPayoutAccount reports the connected payout account, if any.
func (s *UserService) GetPayoutAccount(ctx context.Context, actor Actor) (*string, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermSetPayoutAccount) {
		return nil, apperr.ForbiddenErr("only lawyers can manage a payout account")
	}
	u, err := s.GetProfile(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return u.PayoutAccountRef, nil
}

// SetPayoutAccount connects a gateway account payouts are sent to. Lawyers
// only; releases for their orders fail until one is connected.
func (s *UserService) SetPayoutAccount(ctx context.Context, actor Actor, accountRef string) (*models.User, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermSetPayoutAccount) {
		return nil, apperr.ForbiddenErr("only lawyers can connect a payout account")
	}
	if !strings.HasPrefix(accountRef, "acct_") {
		return nil, apperr.InvalidErr("invalid payout account", map[string]string{
			"account_ref": "must be a gateway connected account id",
		})
	}
	if err := s.users.SetPayoutAccount(ctx, actor.ID, accountRef); err != nil {
		return nil, apperr.Wrap(err)
	}

	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &actor.ID,
		ActorType:   "user",
		Action:      "payout_account_connected",
		EntityType:  "user",
		EntityID:    &actor.ID,
	})
	if err != nil {
		s.log.Error("audit log write failed", zap.Error(err))
	}
	return s.GetProfile(ctx, actor.ID)
}

func (s *UserService) ClearPayoutAccount(ctx context.Context, actor Actor) (*models.User, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermSetPayoutAccount) {
		return nil, apperr.ForbiddenErr("only lawyers can manage a payout account")
	}
	if err := s.users.ClearPayoutAccount(ctx, actor.ID); err != nil {
		return nil, apperr.Wrap(err)
	}

	err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &actor.ID,
		ActorType:   "user",
		Action:      "payout_account_disconnected",
		EntityType:  "user",
		EntityID:    &actor.ID,
	})
	if err != nil {
		s.log.Error("audit log write failed", zap.Error(err))
	}
	return s.GetProfile(ctx, actor.ID)
}
