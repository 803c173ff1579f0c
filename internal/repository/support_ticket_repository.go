package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmiccode/portal/internal/domain"
)

// SupportTicketRepository encapsulates support ticket persistence.
type SupportTicketRepository interface {
	Create(ctx context.Context, ticket *domain.SupportTicket) error
	List(ctx context.Context, scope Scope) ([]domain.SupportTicket, error)
}

type supportTicketRepository struct {
	pool *pgxpool.Pool
}

// NewSupportTicketRepository instantiates repository.
func NewSupportTicketRepository(pool *pgxpool.Pool) SupportTicketRepository {
	return &supportTicketRepository{pool: pool}
}

func (r *supportTicketRepository) Create(ctx context.Context, ticket *domain.SupportTicket) error {
	const query = `
        INSERT INTO support_tickets (client_id, project_id, subject, description, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ClientID,
		ticket.ProjectID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *supportTicketRepository) List(ctx context.Context, scope Scope) ([]domain.SupportTicket, error) {
	const query = `
        SELECT id, client_id, project_id, subject, description, status, priority, created_at, updated_at, resolved_at
        FROM support_tickets
        WHERE ($1::uuid IS NULL OR client_id = $1)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, scope.arg())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SupportTicket{}
	for rows.Next() {
		var t domain.SupportTicket
		if err := rows.Scan(
			&t.ID,
			&t.ClientID,
			&t.ProjectID,
			&t.Subject,
			&t.Description,
			&t.Status,
			&t.Priority,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
