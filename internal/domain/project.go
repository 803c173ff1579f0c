package domain

import "time"

// ProjectStatus tracks delivery phase.
type ProjectStatus string

const (
	ProjectStatusDiscovery   ProjectStatus = "discovery"
	ProjectStatusDesign      ProjectStatus = "design"
	ProjectStatusDevelopment ProjectStatus = "development"
	ProjectStatusReview      ProjectStatus = "review"
	ProjectStatusCompleted   ProjectStatus = "completed"
	ProjectStatusBlocked     ProjectStatus = "blocked"
)

// ChecklistItem is one milestone on a project's checklist.
type ChecklistItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a client engagement. It partitions messages and documents.
type Project struct {
	ID                 string          `json:"id"`
	ClientID           string          `json:"client_id"`
	Name               string          `json:"project_name"`
	Description        *string         `json:"description"`
	Status             ProjectStatus   `json:"status"`
	StartDate          *time.Time      `json:"start_date"`
	EndDate            *time.Time      `json:"end_date"`
	ProgressPercentage int             `json:"progress_percentage"`
	Checklist          []ChecklistItem `json:"checklist"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
