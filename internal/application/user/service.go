package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domain "github.com/checkerhub/checkerhub/internal/domain/user"
)

var ErrAlreadyBootstrapped = errors.New("users already exist")

// Service manages accounts. Session handling lives in the auth service.
type Service struct {
	repo   domain.Repository
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo domain.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("service", "user").Logger(),
	}
}

// CreateInput carries an account created by an administrator. An empty Role
// means MEMBER.
type CreateInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        domain.Role
}

// UpdateInput lists the fields an administrator may change. Nil fields are
// left alone.
type UpdateInput struct {
	DisplayName *string
	Role        *domain.Role
	Status      *domain.Status
}

func (s *Service) CreateUser(ctx context.Context, in CreateInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleMember
	}
	u, err := domain.New(in.Username, in.DisplayName, in.Password, in.Role, s.now())
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUsername(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUsernameTaken
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("user_id", u.UserID.String()).
		Str("username", u.Username).
		Str("role", string(u.Role)).
		Msg("user created")
	return u, nil
}

// Register is self-service signup; it always yields a MEMBER.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (*domain.User, error) {
	return s.CreateUser(ctx, CreateInput{Username: username, DisplayName: displayName, Password: password})
}

// Bootstrap creates the first ADMIN account. It fails once any user exists.
func (s *Service) Bootstrap(ctx context.Context, username, displayName, password string) (*domain.User, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyBootstrapped
	}
	return s.CreateUser(ctx, CreateInput{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
		Role:        domain.RoleAdmin,
	})
}

func (s *Service) UpdateUser(ctx context.Context, userID uuid.UUID, in UpdateInput) (*domain.User, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if in.DisplayName != nil {
		if err := u.Rename(*in.DisplayName, now); err != nil {
			return nil, err
		}
	}
	if in.Role != nil {
		if err := domain.ValidateRole(*in.Role); err != nil {
			return nil, err
		}
		u.Role = *in.Role
	}
	if in.Status != nil {
		if err := domain.ValidateStatus(*in.Status); err != nil {
			return nil, err
		}
		u.Status = *in.Status
	}
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.SetPassword(password, s.now()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID.String()).Msg("password changed")
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, filter domain.Filter, limit, offset int) ([]*domain.User, error) {
	users, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
