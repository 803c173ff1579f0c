package dto

// SendMessageRequest is the body of POST /dashboard/messages.
type SendMessageRequest struct {
	ProjectID string `json:"project_id" form:"project_id"`
	Body      string `json:"message" form:"message"`
}

// CreateTicketRequest is the body of POST /dashboard/support.
type CreateTicketRequest struct {
	Subject     string  `json:"subject" form:"subject"`
	Description string  `json:"description" form:"description"`
	Priority    string  `json:"priority" form:"priority"`
	ProjectID   *string `json:"project_id" form:"project_id"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ContactResponse is the contact form result.
type ContactResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
