package checker

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for checker profiles.
type Repository interface {
	Create(ctx context.Context, c *Checker) error
	Update(ctx context.Context, c *Checker) error
	GetByID(ctx context.Context, id uuid.UUID) (*Checker, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Checker, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Checker, error)
}
