package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// PrincipalLocalsKey is the fiber locals key holding the *Principal.
const PrincipalLocalsKey = "auth_principal"

// LoginPath is where callers without a session are sent.
const LoginPath = "/login"

// ErrNoSession means the request carries no usable session.
var ErrNoSession = errors.New("no session")

// Principal represents the authenticated caller.
type Principal struct {
	Identity domain.Identity
	User     *domain.User
	Token    string
}

// IdentityResolver resolves a session token to an identity, returning
// ErrNoSession for missing, invalid, expired or revoked tokens.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, token string) (*domain.Identity, error)
}

// SessionGate guards dashboard routes.
type SessionGate struct {
	resolver   IdentityResolver
	users      repository.UserRepository
	cookieName string
	logger     *zap.Logger
}

// NewSessionGate constructs middleware.
func NewSessionGate(resolver IdentityResolver, users repository.UserRepository, cookieName string, logger *zap.Logger) *SessionGate {
	return &SessionGate{resolver: resolver, users: users, cookieName: cookieName, logger: logger}
}

// Handle loads the principal or redirects to the login surface.
func (g *SessionGate) Handle(c *fiber.Ctx) error {
	token := TokenFromRequest(c, g.cookieName)
	if token == "" {
		return c.Redirect(LoginPath, fiber.StatusFound)
	}

	identity, err := g.resolver.CurrentIdentity(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		return apperrors.MapError(err)
	}

	user, err := g.users.GetByID(c.UserContext(), identity.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			g.logger.Info("session for missing user", zap.String("user_id", identity.UserID))
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		return apperrors.MapError(err)
	}

	c.Locals(PrincipalLocalsKey, &Principal{Identity: *identity, User: user, Token: token})
	return c.Next()
}

// TokenFromRequest reads the session cookie, falling back to a bearer header.
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	if token := c.Cookies(cookieName); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(PrincipalLocalsKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
