package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// NotificationRepository is the per-user inbox store.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, message, type, is_read)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query, n.UserID, n.Message, n.Type, n.Read).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	const query = `
        SELECT id, user_id, message, type, is_read, created_at
        FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.UserID,
		&n.Message,
		&n.Type,
		&n.Read,
		&n.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	const query = `
        SELECT id, user_id, message, type, is_read, created_at
        FROM notifications
        WHERE user_id=$1 AND (NOT is_read OR NOT $2)
        ORDER BY created_at DESC, id DESC
        LIMIT $3`
	rows, err := conn(ctx, r.pool).Query(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}
