package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkerhub/checkerhub/internal/domain/checker"
)

const checkerColumns = `id, user_id, display_name, bio, price, is_active, created_at, updated_at`

// CheckerRepository implements checker.Repository.
type CheckerRepository struct {
	pool *pgxpool.Pool
}

func NewCheckerRepository(pool *pgxpool.Pool) *CheckerRepository {
	return &CheckerRepository{pool: pool}
}

func (r *CheckerRepository) Create(ctx context.Context, c *checker.Checker) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO checkers (`+checkerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.UserID, c.DisplayName, c.Bio, c.Price, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err, "checkers_user_id_key") {
		return checker.ErrAlreadyRegistered
	}
	return err
}

func (r *CheckerRepository) Update(ctx context.Context, c *checker.Checker) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE checkers
		SET display_name=$1, bio=$2, price=$3, is_active=$4, updated_at=$5
		WHERE id=$6
	`, c.DisplayName, c.Bio, c.Price, c.IsActive, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return checker.ErrNotFound
	}
	return nil
}

func (r *CheckerRepository) GetByID(ctx context.Context, id uuid.UUID) (*checker.Checker, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+checkerColumns+` FROM checkers WHERE id=$1`, id)
	return scanChecker(row)
}

func (r *CheckerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*checker.Checker, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+checkerColumns+` FROM checkers WHERE user_id=$1`, userID)
	return scanChecker(row)
}

func (r *CheckerRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*checker.Checker, error) {
	query := `SELECT ` + checkerColumns + ` FROM checkers`
	if activeOnly {
		query += addWhere(query) + " is_active"
	}
	query += " ORDER BY display_name, created_at LIMIT $1 OFFSET $2"

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*checker.Checker
	for rows.Next() {
		c, err := scanChecker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChecker(row pgx.Row) (*checker.Checker, error) {
	var c checker.Checker
	if err := row.Scan(&c.ID, &c.UserID, &c.DisplayName, &c.Bio, &c.Price, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
