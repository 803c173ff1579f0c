package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cosmiccode/portal/internal/api/dto"
	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/service"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// DashboardReader loads the shell and the read-only tabs.
type DashboardReader interface {
	Shell(ctx context.Context, user *domain.User) (*service.Shell, error)
	Projects(ctx context.Context, user *domain.User) ([]domain.Project, error)
	Invoices(ctx context.Context, user *domain.User) ([]domain.Invoice, error)
	Documents(ctx context.Context, user *domain.User) ([]domain.Document, error)
	Tickets(ctx context.Context, user *domain.User) ([]domain.SupportTicket, error)
	Messages(ctx context.Context, user *domain.User) (*service.MessagesTab, error)
}

// TicketCreator opens support tickets.
type TicketCreator interface {
	Create(ctx context.Context, user *domain.User, input service.CreateTicketInput) (*domain.SupportTicket, error)
}

// MessageSender posts one message outside a live feed.
type MessageSender interface {
	Send(ctx context.Context, user *domain.User, projectID, body string) (*domain.Message, error)
}

// DashboardHandler serves the dashboard shell and its tabs.
type DashboardHandler struct {
	dashboard DashboardReader
	tickets   TicketCreator
	messages  MessageSender
}

// NewDashboardHandler returns a new handler instance.
func NewDashboardHandler(dashboard DashboardReader, tickets TicketCreator, messages MessageSender) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, tickets: tickets, messages: messages}
}

// Shell returns the user and the navigation with per-tab counts.
func (h *DashboardHandler) Shell(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	shell, err := h.dashboard.Shell(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": shell})
}

func (h *DashboardHandler) Projects(c *fiber.Ctx) error {
	return h.list(c, func(ctx context.Context, u *domain.User) (any, error) { return h.dashboard.Projects(ctx, u) })
}

func (h *DashboardHandler) Invoices(c *fiber.Ctx) error {
	return h.list(c, func(ctx context.Context, u *domain.User) (any, error) { return h.dashboard.Invoices(ctx, u) })
}

func (h *DashboardHandler) Documents(c *fiber.Ctx) error {
	return h.list(c, func(ctx context.Context, u *domain.User) (any, error) { return h.dashboard.Documents(ctx, u) })
}

func (h *DashboardHandler) Tickets(c *fiber.Ctx) error {
	return h.list(c, func(ctx context.Context, u *domain.User) (any, error) { return h.dashboard.Tickets(ctx, u) })
}

// Messages returns the viewer's held messages and per-project counts.
func (h *DashboardHandler) Messages(c *fiber.Ctx) error {
	return h.list(c, func(ctx context.Context, u *domain.User) (any, error) { return h.dashboard.Messages(ctx, u) })
}

// CreateTicket opens a support ticket.
func (h *DashboardHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.tickets.Create(c.UserContext(), user, service.CreateTicketInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// SendMessage posts a message to one of the viewer's projects.
func (h *DashboardHandler) SendMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	msg, err := h.messages.Send(c.UserContext(), user, req.ProjectID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": msg})
}

func (h *DashboardHandler) list(c *fiber.Ctx, load func(context.Context, *domain.User) (any, error)) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	data, err := load(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": data})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}
