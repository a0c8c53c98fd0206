package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkerhub/checkerhub/internal/domain/user"
)

const userColumns = `id, user_id, username, display_name, password_hash, role, status, created_at, updated_at`

// UserRepository implements user.Repository.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users
		(user_id, username, display_name, password_hash, role, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, u.UserID, u.Username, u.DisplayName, u.PasswordHash, u.Role, u.Status, u.CreatedAt, u.UpdatedAt)
	if err := row.Scan(&u.ID); err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return user.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET username=$1, display_name=$2, password_hash=$3, role=$4, status=$5, updated_at=$6
		WHERE user_id=$7
	`, u.Username, u.DisplayName, u.PasswordHash, u.Role, u.Status, u.UpdatedAt, u.UserID)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return user.ErrUsernameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	return scanUser(row)
}

// List orders newest accounts first.
func (r *UserRepository) List(ctx context.Context, filter user.Filter, limit, offset int) ([]*user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}
	if filter.Role != nil {
		conds = append(conds, "role = "+arg(*filter.Role))
	}
	if filter.Status != nil {
		conds = append(conds, "status = "+arg(*filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg(containsPattern(search))
		conds = append(conds, "(username ILIKE "+p+" OR display_name ILIKE "+p+")")
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.UserID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
