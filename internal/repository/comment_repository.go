package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID int64, includePrivate bool) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, author_id, message, is_private)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Message,
		comment.Private,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64, includePrivate bool) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.ticket_id, c.author_id, c.message, c.is_private, c.created_at, u.full_name
        FROM comments c
        JOIN users u ON u.id = c.author_id
        WHERE c.ticket_id=$1 AND (NOT c.is_private OR $2)
        ORDER BY c.created_at ASC, c.id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID, includePrivate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Message,
			&comment.Private,
			&comment.CreatedAt,
			&comment.AuthorName,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
