package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/cosmiccode/portal/internal/api/http/handlers"
	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Site           *handlers.SiteHandler
	Session        *handlers.SessionHandler
	Contact        *handlers.ContactHandler
	Dashboard      *handlers.DashboardHandler
	Documents      *handlers.DocumentsHandler
	FeedSocket     *handlers.FeedSocketHandler
	SessionGate    *auth.SessionGate
	ContactLimiter *IPLimiter
	Metrics        *observability.Metrics
	// FilesPrefix and FilesRoot expose uploaded documents; empty disables it.
	FilesPrefix string
	FilesRoot   string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Get("/", cfg.Site.Index)
	app.Get(auth.LoginPath, cfg.Session.LoginPage)
	app.Post(auth.LoginPath, cfg.Session.Login)
	app.Post("/logout", cfg.Session.Logout)
	app.Post("/contact", cfg.ContactLimiter.Handle, cfg.Contact.Submit)

	// Uploaded documents are public by URL, like the storage bucket they replace.
	if cfg.FilesPrefix != "" && cfg.FilesRoot != "" {
		app.Static(cfg.FilesPrefix, cfg.FilesRoot, fiber.Static{Browse: false})
	}

	dashboard := app.Group(handlers.DashboardPath, cfg.SessionGate.Handle)
	dashboard.Get("/", cfg.Dashboard.Shell)
	dashboard.Get("/projects", cfg.Dashboard.Projects)
	dashboard.Get("/invoices", cfg.Dashboard.Invoices)
	dashboard.Get("/documents", cfg.Dashboard.Documents)
	dashboard.Post("/documents", cfg.Documents.Upload)
	dashboard.Get("/messages", cfg.Dashboard.Messages)
	dashboard.Post("/messages", cfg.Dashboard.SendMessage)
	dashboard.Get("/messages/live", cfg.FeedSocket.Upgrade, cfg.FeedSocket.Handler())
	dashboard.Get("/support", cfg.Dashboard.Tickets)
	dashboard.Post("/support", cfg.Dashboard.CreateTicket)
}
