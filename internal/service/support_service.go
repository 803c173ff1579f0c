package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// CreateTicketInput describes a new support ticket.
type CreateTicketInput struct {
	Subject     string  `json:"subject" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	Priority    string  `json:"priority"`
	ProjectID   *string `json:"project_id"`
}

// SupportService manages client support tickets.
type SupportService struct {
	tickets  repository.SupportTicketRepository
	projects repository.ProjectRepository
	logger   *zap.Logger
}

// SupportDependencies bundles repositories for the support service.
type SupportDependencies struct {
	TicketRepo  repository.SupportTicketRepository
	ProjectRepo repository.ProjectRepository
	Logger      *zap.Logger
}

// NewSupportService builds the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupportService{tickets: deps.TicketRepo, projects: deps.ProjectRepo, logger: logger}
}

// Create opens a ticket. Subject and description are checked before any
// store call; priority defaults to medium.
func (s *SupportService) Create(ctx context.Context, user *domain.User, input CreateTicketInput) (*domain.SupportTicket, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateInput("subject and description are required", input); err != nil {
		return nil, err
	}

	priority := domain.TicketPriorityMedium
	if input.Priority != "" {
		priority = domain.TicketPriority(input.Priority)
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
		}
	}

	var project *domain.Project
	if input.ProjectID != nil && strings.TrimSpace(*input.ProjectID) != "" {
		p, err := visibleProject(ctx, s.projects, user, strings.TrimSpace(*input.ProjectID))
		if err != nil {
			return nil, err
		}
		project = p
	}

	ticket := &domain.SupportTicket{
		ClientID:    ownerOf(user, project),
		Subject:     input.Subject,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}
	if project != nil {
		ticket.ProjectID = &project.ID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("support ticket opened",
		zap.String("ticket_id", ticket.ID),
		zap.String("client_id", ticket.ClientID),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}
