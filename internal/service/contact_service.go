package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/config"
	"github.com/cosmiccode/portal/internal/mail"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// ContactSubjectPrefix starts the subject of every relayed submission.
const ContactSubjectPrefix = "Portfolio Contact: "

// ContactInput is one contact form submission.
type ContactInput struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Email   string `json:"email" form:"email" validate:"required,email"`
	Subject string `json:"subject" form:"subject" validate:"required"`
	Message string `json:"message" form:"message" validate:"required"`
}

// ContactService relays contact submissions to the studio inbox.
type ContactService struct {
	sender mail.Sender
	from   string
	to     string
	logger *zap.Logger
}

// NewContactService builds the service.
func NewContactService(sender mail.Sender, cfg config.MailConfig, logger *zap.Logger) *ContactService {
	return &ContactService{sender: sender, from: cfg.Sender(), to: cfg.Inbox(), logger: logger}
}

// Submit validates the submission and sends exactly one email.
func (s *ContactService) Submit(ctx context.Context, input ContactInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Message = strings.TrimSpace(input.Message)
	if err := validateInput("All fields are required", input); err != nil {
		return err
	}

	if err := s.sender.Send(ctx, contactEmail(s.from, s.to, input)); err != nil {
		s.logger.Error("contact email failed", zap.String("reply_to", input.Email), zap.Error(err))
		return apperrors.NewUpstreamError("Failed to send email", err)
	}
	return nil
}

func contactEmail(from, to string, in ContactInput) mail.Message {
	htmlBody := fmt.Sprintf(`<h2>New Contact Form Submission</h2>
<p><strong>From:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Subject:</strong> %s</p>
<hr />
<h3>Message:</h3>
<p>%s</p>
`,
		html.EscapeString(in.Name),
		html.EscapeString(in.Email),
		html.EscapeString(in.Subject),
		strings.ReplaceAll(html.EscapeString(in.Message), "\n", "<br />"),
	)
	textBody := fmt.Sprintf("New Contact Form Submission\n\nFrom: %s\nEmail: %s\nSubject: %s\n\nMessage:\n%s\n",
		in.Name, in.Email, in.Subject, in.Message)

	return mail.Message{
		From:    from,
		To:      to,
		ReplyTo: in.Email,
		Subject: ContactSubjectPrefix + in.Subject,
		HTML:    htmlBody,
		Text:    textBody,
	}
}
