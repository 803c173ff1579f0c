package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/config"
	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// AuthService coordinates sign-in, session resolution and account provisioning.
type AuthService struct {
	users       repository.UserRepository
	revocations auth.Revocations
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	logger      *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations auth.Revocations
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	revocations := deps.Revocations
	if revocations == nil {
		revocations = auth.NewMemoryRevocations()
	}
	return &AuthService{
		users:       deps.UserRepo,
		revocations: revocations,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		bcryptCost:  cfg.Auth.BcryptCost,
		logger:      logger,
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password")

// SignIn authenticates a user by email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}

	token, claims, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user signed in", zap.String("user_id", user.ID))
	return &domain.Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// CurrentIdentity resolves a session token. Missing, invalid, expired and
// revoked tokens yield auth.ErrNoSession.
func (s *AuthService) CurrentIdentity(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, auth.ErrNoSession
	}
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, auth.ErrNoSession
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrNoSession
	}
	identity := claims.Identity()
	return &identity, nil
}

// SignOut revokes the token for the rest of its lifetime. Signing out an
// invalid token is a no-op.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.logger.Info("user signed out", zap.String("user_id", claims.Subject))
	return nil
}

// CreateUserInput provisions a dashboard account.
type CreateUserInput struct {
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,min=8"`
	Role          string  `json:"role" validate:"required,oneof=client admin"`
	CompanyName   *string `json:"company_name"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
}

// CreateUser provisions an account. There is no self-registration; operators
// create accounts from the CLI.
func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput("invalid user", input); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	email := input.Email
	user := &domain.User{
		Email:         &email,
		Role:          domain.UserRole(input.Role),
		CompanyName:   input.CompanyName,
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		PasswordHash:  hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
