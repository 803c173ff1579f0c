package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmiccode/portal/internal/domain"
)

// MessageRepository manages project conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByProject(ctx context.Context, projectID string) ([]domain.Message, error)
	List(ctx context.Context, scope Scope) ([]domain.Message, error)
	// MarkRead flags unread messages of a project as read, skipping those sent
	// by viewerID. A nil ids slice targets every such message. It returns the
	// rows it changed.
	MarkRead(ctx context.Context, projectID, viewerID string, ids []string) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, project_id, sender_id, message, attachments, is_read, created_at, updated_at`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.Attachments == nil {
		msg.Attachments = []domain.Attachment{}
	}
	const query = `
        INSERT INTO messages (project_id, sender_id, message, attachments, is_read)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		msg.ProjectID,
		msg.SenderID,
		msg.Body,
		msg.Attachments,
		msg.Read,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
}

func (r *messageRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Message, error) {
	const query = `SELECT ` + messageColumns + `
        FROM messages WHERE project_id=$1 ORDER BY created_at ASC, id ASC`
	return r.query(ctx, query, projectID)
}

func (r *messageRepository) List(ctx context.Context, scope Scope) ([]domain.Message, error) {
	const query = `SELECT m.id, m.project_id, m.sender_id, m.message, m.attachments, m.is_read, m.created_at, m.updated_at
        FROM messages m
        JOIN projects p ON p.id = m.project_id
        WHERE ($1::uuid IS NULL OR p.client_id = $1)
        ORDER BY m.created_at DESC`
	return r.query(ctx, query, scope.arg())
}

func (r *messageRepository) MarkRead(ctx context.Context, projectID, viewerID string, ids []string) ([]domain.Message, error) {
	const query = `
        UPDATE messages SET is_read=TRUE, updated_at=NOW()
        WHERE project_id=$1 AND sender_id<>$2 AND is_read=FALSE
          AND ($3::uuid[] IS NULL OR id = ANY($3))
        RETURNING ` + messageColumns
	return r.query(ctx, query, projectID, viewerID, ids)
}

func (r *messageRepository) query(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID,
		&msg.ProjectID,
		&msg.SenderID,
		&msg.Body,
		&msg.Attachments,
		&msg.Read,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	return msg, err
}
