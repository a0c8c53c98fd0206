package user

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List. Search matches a substring of the username or display
// name, case-insensitively.
type Filter struct {
	Role   *Role
	Status *Status
	Search string
}

// Repository stores accounts. Lookups return nil, nil when nothing matches.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*User, error)
	Count(ctx context.Context) (int, error)
}
