package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmiccode/portal/internal/domain"
)

// ProjectRepository manages client projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, scope Scope) ([]domain.Project, error)
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository builds repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

const projectColumns = `id, client_id, project_name, description, status, start_date, end_date,
               progress_percentage, checklist, created_at, updated_at`

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project.Checklist == nil {
		project.Checklist = []domain.ChecklistItem{}
	}
	const query = `
        INSERT INTO projects (client_id, project_name, description, status, start_date, end_date, progress_percentage, checklist)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		project.ClientID,
		project.Name,
		project.Description,
		project.Status,
		project.StartDate,
		project.EndDate,
		project.ProgressPercentage,
		project.Checklist,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	project, err := scanProject(row)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context, scope Scope) ([]domain.Project, error) {
	const query = `SELECT ` + projectColumns + `
        FROM projects
        WHERE ($1::uuid IS NULL OR client_id = $1)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, scope.arg())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, project)
	}
	return result, rows.Err()
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.StartDate,
		&p.EndDate,
		&p.ProgressPercentage,
		&p.Checklist,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
