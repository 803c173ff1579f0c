package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/service"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// DocumentUploader stores a file and records it against a project.
type DocumentUploader interface {
	Upload(ctx context.Context, user *domain.User, input service.UploadInput) (*domain.Document, error)
}

// DocumentsHandler accepts document uploads.
type DocumentsHandler struct {
	documents DocumentUploader
}

// NewDocumentsHandler returns a new handler instance.
func NewDocumentsHandler(documents DocumentUploader) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

// Upload reads a multipart form with file, project_id and description.
func (h *DocumentsHandler) Upload(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"file": "required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.UserContext(), user, service.UploadInput{
		ProjectID:   c.FormValue("project_id"),
		Description: c.FormValue("description"),
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": doc})
}
