package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// UserRepository defines persistence access for accounts of every role.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, full_name, phone, login, password_hash, role, active, created_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (full_name, phone, login, password_hash, role, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	err := conn(ctx, r.pool).QueryRow(ctx, query,
		user.FullName,
		user.Phone,
		user.Login,
		user.PasswordHash,
		user.Role,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET full_name=$1, phone=$2, password_hash=$3, active=$4
        WHERE id=$5`

	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		user.FullName,
		user.Phone,
		user.PasswordHash,
		user.Active,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE login=$1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, login))
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + ` FROM users
        WHERE role=$1 AND (active OR NOT $2)
        ORDER BY full_name, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, role, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Phone,
		&user.Login,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
