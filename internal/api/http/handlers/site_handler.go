package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cosmiccode/portal/internal/site"
)

// SiteHandler renders the public marketing page.
type SiteHandler struct {
	content *site.Content
	title   string
}

// NewSiteHandler returns a new handler instance.
func NewSiteHandler(content *site.Content, title string) *SiteHandler {
	return &SiteHandler{content: content, title: title}
}

// Index renders every section; ?projects=featured narrows the portfolio grid.
func (h *SiteHandler) Index(c *fiber.Ctx) error {
	filter := site.ParseProjectFilter(c.Query("projects"))
	return c.Render("index", fiber.Map{
		"Title":    h.title,
		"Content":  h.content,
		"Filter":   string(filter),
		"Projects": h.content.FilterProjects(filter),
	})
}
