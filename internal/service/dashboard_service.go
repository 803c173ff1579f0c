package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/feed"
	"github.com/cosmiccode/portal/internal/repository"
)

// Tab identifies a dashboard section.
type Tab string

const (
	TabProjects  Tab = "projects"
	TabInvoices  Tab = "invoices"
	TabDocuments Tab = "documents"
	TabMessages  Tab = "messages"
	TabSupport   Tab = "support"
)

// NavEntry is one item of the dashboard navigation.
type NavEntry struct {
	Tab   Tab    `json:"tab"`
	Label string `json:"label"`
	Path  string `json:"path"`
	Count int    `json:"count"`
	// Unread is only set for the messages tab.
	Unread int `json:"unread,omitempty"`
}

// Shell is the dashboard landing payload.
type Shell struct {
	User       *domain.User `json:"user"`
	Navigation []NavEntry   `json:"navigation"`
}

// MessagesTab is the messages section: the viewer's projects, every message
// they can see and per-project counts.
type MessagesTab struct {
	Projects []domain.Project              `json:"projects"`
	Messages []domain.Message              `json:"messages"`
	Counts   map[string]feed.ProjectCounts `json:"counts"`
}

// DashboardService reads the per-tab collections. Every call queries the
// store; tabs share no cache.
type DashboardService struct {
	projects  repository.ProjectRepository
	invoices  repository.InvoiceRepository
	messages  repository.MessageRepository
	documents repository.DocumentRepository
	tickets   repository.SupportTicketRepository
}

// DashboardDependencies bundles repositories for the dashboard.
type DashboardDependencies struct {
	ProjectRepo  repository.ProjectRepository
	InvoiceRepo  repository.InvoiceRepository
	MessageRepo  repository.MessageRepository
	DocumentRepo repository.DocumentRepository
	TicketRepo   repository.SupportTicketRepository
}

// NewDashboardService builds the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	return &DashboardService{
		projects:  deps.ProjectRepo,
		invoices:  deps.InvoiceRepo,
		messages:  deps.MessageRepo,
		documents: deps.DocumentRepo,
		tickets:   deps.TicketRepo,
	}
}

// Shell fetches every collection concurrently and summarises them.
func (s *DashboardService) Shell(ctx context.Context, user *domain.User) (*Shell, error) {
	scope := repository.ScopeFor(user)
	var (
		projects  []domain.Project
		invoices  []domain.Invoice
		messages  []domain.Message
		documents []domain.Document
		tickets   []domain.SupportTicket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { projects, err = s.projects.List(gctx, scope); return })
	g.Go(func() (err error) { invoices, err = s.invoices.List(gctx, scope); return })
	g.Go(func() (err error) { messages, err = s.messages.List(gctx, scope); return })
	g.Go(func() (err error) { documents, err = s.documents.List(gctx, scope); return })
	g.Go(func() (err error) { tickets, err = s.tickets.List(gctx, scope); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unread := 0
	for _, c := range feed.NewHeldSet(messages).Counts(user.ID) {
		unread += c.Unread
	}

	return &Shell{
		User: user,
		Navigation: []NavEntry{
			{Tab: TabProjects, Label: "Projects", Path: "/dashboard/projects", Count: len(projects)},
			{Tab: TabInvoices, Label: "Invoices", Path: "/dashboard/invoices", Count: len(invoices)},
			{Tab: TabDocuments, Label: "Documents", Path: "/dashboard/documents", Count: len(documents)},
			{Tab: TabMessages, Label: "Messages", Path: "/dashboard/messages", Count: len(messages), Unread: unread},
			{Tab: TabSupport, Label: "Support", Path: "/dashboard/support", Count: len(tickets)},
		},
	}, nil
}

func (s *DashboardService) Projects(ctx context.Context, user *domain.User) ([]domain.Project, error) {
	return s.projects.List(ctx, repository.ScopeFor(user))
}

func (s *DashboardService) Invoices(ctx context.Context, user *domain.User) ([]domain.Invoice, error) {
	return s.invoices.List(ctx, repository.ScopeFor(user))
}

func (s *DashboardService) Documents(ctx context.Context, user *domain.User) ([]domain.Document, error) {
	return s.documents.List(ctx, repository.ScopeFor(user))
}

func (s *DashboardService) Tickets(ctx context.Context, user *domain.User) ([]domain.SupportTicket, error) {
	return s.tickets.List(ctx, repository.ScopeFor(user))
}

// Messages returns the messages tab. Messages are newest first, as stored.
func (s *DashboardService) Messages(ctx context.Context, user *domain.User) (*MessagesTab, error) {
	scope := repository.ScopeFor(user)
	var (
		projects []domain.Project
		messages []domain.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { projects, err = s.projects.List(gctx, scope); return })
	g.Go(func() (err error) { messages, err = s.messages.List(gctx, scope); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &MessagesTab{
		Projects: projects,
		Messages: messages,
		Counts:   feed.NewHeldSet(messages).Counts(user.ID),
	}, nil
}
