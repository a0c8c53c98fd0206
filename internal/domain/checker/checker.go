package checker

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("checker not found")
	ErrInactive          = errors.New("checker is not accepting bookings")
	ErrInvalidPrice      = errors.New("price must be non-negative")
	ErrNameRequired      = errors.New("display name is required")
	ErrAlreadyRegistered = errors.New("user already has a checker profile")
)

// Checker is the service-provider profile a client books a test with.
type Checker struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Bio         string          `json:"bio,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// New builds an active checker profile for a user.
func New(userID uuid.UUID, displayName, bio string, price decimal.Decimal) (*Checker, error) {
	now := time.Now().UTC()
	c := &Checker{
		ID:          uuid.New(),
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Bio:         strings.TrimSpace(bio),
		Price:       price,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Checker) Validate() error {
	if c.DisplayName == "" {
		return ErrNameRequired
	}
	if c.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
