package checker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domain "github.com/checkerhub/checkerhub/internal/domain/checker"
)

// Service manages checker profiles.
type Service struct {
	repo   domain.Repository
	logger zerolog.Logger
}

// NewService creates a checker service.
func NewService(repo domain.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "checker").Logger(),
	}
}

// CreateInput defines checker registration input.
type CreateInput struct {
	DisplayName string
	Bio         string
	Price       decimal.Decimal
}

// UpdateInput defines a partial profile update.
type UpdateInput struct {
	DisplayName *string
	Bio         *string
	Price       *decimal.Decimal
	IsActive    *bool
}

// Register gives a user a checker profile. A user has at most one.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, input CreateInput) (*domain.Checker, error) {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyRegistered
	}
	c, err := domain.New(userID, input.DisplayName, input.Bio, input.Price)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("checker_id", c.ID.String()).Str("user_id", userID.String()).Msg("checker registered")
	return c, nil
}

// UpdateMine changes the caller's own profile. Price changes apply to future
// bookings only.
func (s *Service) UpdateMine(ctx context.Context, userID uuid.UUID, input UpdateInput) (*domain.Checker, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if input.DisplayName != nil {
		c.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		c.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.Price != nil {
		c.Price = *input.Price
	}
	if input.IsActive != nil {
		c.IsActive = *input.IsActive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Checker, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Checker, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*domain.Checker, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}
