package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/auth"
	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/models"
	"github.com/judicature/backend/internal/rbac"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type AuthService struct {
	users UserStore
	cfg   *config.Config
	log   *zap.Logger
}

func NewAuthService(users UserStore, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{users: users, cfg: cfg, log: log}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	if !emailRe.MatchString(in.Email) {
		fields["email"] = "must be a valid email address"
	}
	if len(in.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if !rbac.IsValidRole(in.Role) {
		fields["role"] = "must be client or lawyer"
	}
	if len(fields) > 0 {
		return nil, "", apperr.InvalidErr("invalid registration", fields)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, "", apperr.ConflictErr("email already registered")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperr.Wrap(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", apperr.Wrap(err)
	}

	u := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", apperr.Wrap(err)
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.JWTExpiration)
	if err != nil {
		return nil, "", apperr.Wrap(err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("role", u.Role))
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperr.UnauthorizedErr("invalid credentials")
		}
		return nil, "", apperr.Wrap(err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", apperr.UnauthorizedErr("invalid credentials")
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.JWTExpiration)
	if err != nil {
		return nil, "", apperr.Wrap(err)
	}
	if err := s.users.UpdateLastActive(ctx, u.ID); err != nil {
		s.log.Warn("failed to update last active", zap.Error(err))
	}
	return u, token, nil
}
