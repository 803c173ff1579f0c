package domain

import "time"

// DocumentCategory classifies uploaded files. Admins assign it after upload.
type DocumentCategory string

const (
	DocumentCategoryContract    DocumentCategory = "contract"
	DocumentCategoryDesign      DocumentCategory = "design"
	DocumentCategoryAsset       DocumentCategory = "asset"
	DocumentCategoryDeliverable DocumentCategory = "deliverable"
	DocumentCategoryInvoice     DocumentCategory = "invoice"
	DocumentCategoryOther       DocumentCategory = "other"
)

// Document is file metadata attached to a project.
type Document struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	FileName    string            `json:"file_name"`
	FileURL     string            `json:"file_url"`
	FileType    *string           `json:"file_type"`
	FileSize    *int64            `json:"file_size"`
	Category    *DocumentCategory `json:"category"`
	UploadedBy  *string           `json:"uploaded_by"`
	Description *string           `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
