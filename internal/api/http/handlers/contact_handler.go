package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cosmiccode/portal/internal/api/dto"
	"github.com/cosmiccode/portal/internal/observability"
	"github.com/cosmiccode/portal/internal/service"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// ContactSubmitter relays contact form submissions.
type ContactSubmitter interface {
	Submit(ctx context.Context, input service.ContactInput) error
}

// ContactHandler accepts the public contact form.
type ContactHandler struct {
	contact ContactSubmitter
	metrics *observability.Metrics
}

// NewContactHandler returns a new handler instance.
func NewContactHandler(contact ContactSubmitter, metrics *observability.Metrics) *ContactHandler {
	return &ContactHandler{contact: contact, metrics: metrics}
}

// Submit accepts a form-encoded or JSON body and answers {success, error}.
func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var input service.ContactInput
	if err := c.BodyParser(&input); err != nil {
		h.metrics.RecordContact("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ContactResponse{Error: "Invalid request"})
	}

	if err := h.contact.Submit(c.UserContext(), input); err != nil {
		domainErr := apperrors.ToDomainError(err)
		outcome := "failed"
		if domainErr.Code == "VALIDATION_FAILED" {
			outcome = "invalid"
		}
		h.metrics.RecordContact(outcome)
		return c.Status(domainErr.HTTPStatus).JSON(dto.ContactResponse{Error: domainErr.Message})
	}

	h.metrics.RecordContact("sent")
	return c.JSON(dto.ContactResponse{Success: true})
}
