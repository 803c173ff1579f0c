package domain

import "time"

// Attachment describes a file linked from a message.
type Attachment struct {
	Name string  `json:"name"`
	URL  string  `json:"url"`
	Size *int64  `json:"size,omitempty"`
	Type *string `json:"type,omitempty"`
}

// Message is one entry in a project's conversation. Only Read and UpdatedAt
// change after creation.
type Message struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	SenderID    string       `json:"sender_id"`
	Body        string       `json:"message"`
	Attachments []Attachment `json:"attachments"`
	Read        bool         `json:"is_read"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
