package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmiccode/portal/internal/domain"
)

// DocumentRepository persists project document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	List(ctx context.Context, scope Scope) ([]domain.Document, error)
}

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
        INSERT INTO documents (project_id, file_name, file_url, file_type, file_size, category, uploaded_by, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		doc.ProjectID,
		doc.FileName,
		doc.FileURL,
		doc.FileType,
		doc.FileSize,
		doc.Category,
		doc.UploadedBy,
		doc.Description,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *documentRepository) List(ctx context.Context, scope Scope) ([]domain.Document, error) {
	const query = `
        SELECT d.id, d.project_id, d.file_name, d.file_url, d.file_type, d.file_size, d.category,
               d.uploaded_by, d.description, d.created_at, d.updated_at
        FROM documents d
        JOIN projects p ON p.id = d.project_id
        WHERE ($1::uuid IS NULL OR p.client_id = $1)
        ORDER BY d.created_at DESC`
	rows, err := r.pool.Query(ctx, query, scope.arg())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Document{}
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.ProjectID,
			&doc.FileName,
			&doc.FileURL,
			&doc.FileType,
			&doc.FileSize,
			&doc.Category,
			&doc.UploadedBy,
			&doc.Description,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}
