package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clickcoin/user-directory/internal/domain"
)

// ErrDuplicate reports a unique-constraint violation on username or email.
// The database indexes are the authoritative uniqueness check; the service
// layer's pre-insert lookup is only a fast path.
var ErrDuplicate = errors.New("username or email already taken")

const uniqueViolation = "23505"

// UserRepository defines persistence access for directory users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	Search(ctx context.Context, username string) ([]*domain.User, error)
	ListPublished(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, first_name, last_name, email, phone, image, password_hash, published, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.Image,
		&user.PasswordHash,
		&user.Published,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, first_name, last_name, email, phone, image, password_hash, published)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Image,
		user.PasswordHash,
		user.Published,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users
        SET username=$1, first_name=$2, last_name=$3, email=$4, phone=$5, image=$6, published=$7, updated_at=NOW()
        WHERE id=$8`

	cmd, err := r.pool.Exec(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Image,
		user.Published,
		user.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(username)=lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// FindByUsernameOrEmail matches the username case-insensitively and the
// email exactly. pgx.ErrNoRows means no conflicting record exists.
func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(username)=lower($1) OR email=$2 LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, username, email))
}

// Search lists users whose username contains the term, case-insensitively.
// An empty term lists everyone.
func (r *userRepository) Search(ctx context.Context, username string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	args := []any{}
	if username != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE username ILIKE '%' || $1 || '%' ORDER BY created_at`
		args = append(args, username)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepository) ListPublished(ctx context.Context) ([]*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE published ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func collectUsers(rows pgx.Rows) ([]*domain.User, error) {
	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
