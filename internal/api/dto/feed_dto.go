package dto

import "github.com/cosmiccode/portal/internal/feed"

// Frame types exchanged over the live feed socket.
const (
	FrameSelect     = "select"
	FrameSend       = "send"
	FrameView       = "view"
	FrameSendResult = "send_result"
	FrameError      = "error"
)

// ClientFrame is a command sent by the browser.
type ClientFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	Body      string `json:"body"`
}

// ViewFrame carries the latest feed view.
type ViewFrame struct {
	Type string    `json:"type"`
	Data feed.View `json:"data"`
}

// SendResultFrame reports the outcome of one send. Body is echoed on failure
// so the composer can keep it.
type SendResultFrame struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Body    string `json:"body,omitempty"`
	Message any    `json:"message,omitempty"`
}

// ErrorFrame reports a rejected command.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewViewFrame wraps v.
func NewViewFrame(v feed.View) ViewFrame {
	return ViewFrame{Type: FrameView, Data: v}
}

// NewErrorFrame wraps msg.
func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Error: msg}
}
