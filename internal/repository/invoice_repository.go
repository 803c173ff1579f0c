package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmiccode/portal/internal/domain"
)

// InvoiceRepository exposes client invoices.
type InvoiceRepository interface {
	List(ctx context.Context, scope Scope) ([]domain.Invoice, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type invoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository builds repository.
func NewInvoiceRepository(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

func (r *invoiceRepository) List(ctx context.Context, scope Scope) ([]domain.Invoice, error) {
	const query = `
        SELECT id, client_id, project_id, invoice_number, amount::float8, status, due_date, paid_date,
               invoice_url, notes, created_at, updated_at
        FROM invoices
        WHERE ($1::uuid IS NULL OR client_id = $1)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, scope.arg())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Invoice{}
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(
			&inv.ID,
			&inv.ClientID,
			&inv.ProjectID,
			&inv.InvoiceNumber,
			&inv.Amount,
			&inv.Status,
			&inv.DueDate,
			&inv.PaidDate,
			&inv.InvoiceURL,
			&inv.Notes,
			&inv.CreatedAt,
			&inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// MarkOverdue moves pending invoices whose due date is before asOf to overdue.
func (r *invoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `
        UPDATE invoices SET status='overdue', updated_at=NOW()
        WHERE status='pending' AND due_date < $1::date`
	cmd, err := r.pool.Exec(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
