package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/api/dto"
	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/config"
	"github.com/cosmiccode/portal/internal/domain"
)

// DashboardPath is where a successful sign-in lands.
const DashboardPath = "/dashboard"

// Authenticator signs users in and out.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
}

// SessionHandler serves the login surface.
type SessionHandler struct {
	auth   Authenticator
	cookie config.AuthConfig
	logger *zap.Logger
}

// NewSessionHandler returns a new handler instance.
func NewSessionHandler(authenticator Authenticator, cookie config.AuthConfig, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{auth: authenticator, cookie: cookie, logger: logger}
}

// LoginPage renders the sign-in form.
func (h *SessionHandler) LoginPage(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{"Title": "Client login"})
}

// Login signs in and sets the session cookie. Failures re-render the form.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return h.loginFailed(c, "", "Invalid request")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return h.loginFailed(c, email, "Email and password are required")
	}

	session, err := h.auth.SignIn(c.UserContext(), email, req.Password)
	if err != nil {
		h.logger.Debug("sign in rejected", zap.String("email", email), zap.Error(err))
		return h.loginFailed(c, email, "Invalid email or password")
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(DashboardPath, fiber.StatusSeeOther)
}

// Logout revokes the current session and clears the cookie.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	if token := auth.TokenFromRequest(c, h.cookie.CookieName); token != "" {
		if err := h.auth.SignOut(c.UserContext(), token); err != nil {
			h.logger.Warn("sign out failed", zap.Error(err))
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(auth.LoginPath, fiber.StatusSeeOther)
}

func (h *SessionHandler) loginFailed(c *fiber.Ctx, email, msg string) error {
	return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
		"Title": "Client login",
		"Email": email,
		"Error": msg,
	})
}
