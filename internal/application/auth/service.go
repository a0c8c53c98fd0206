package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainSession "github.com/checkerhub/checkerhub/internal/domain/session"
	domainUser "github.com/checkerhub/checkerhub/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Service issues and checks bearer sessions.
type Service struct {
	users      domainUser.Repository
	sessions   domainSession.Repository
	sessionTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewService(users domainUser.Repository, sessions domainSession.Repository, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
		logger:     logger.With().Str("service", "auth").Logger(),
	}
}

// LoginResult carries the new session and the token the client must present.
type LoginResult struct {
	User    *domainUser.User
	Session *domainSession.Session
	Token   string
}

// Login checks the password and opens a session. Unknown users and wrong
// passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string, userAgent, ipAddress *string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, domainUser.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrUserDisabled
	}

	sess, token, err := domainSession.New(u.UserID, s.sessionTTL, s.now())
	if err != nil {
		return nil, err
	}
	sess.UserAgent = userAgent
	sess.IPAddress = ipAddress
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", u.UserID.String()).
		Str("session_id", sess.SessionID.String()).
		Msg("user login")
	return &LoginResult{User: u, Session: sess, Token: token}, nil
}

// Authenticate resolves a bearer token to its active user. Expired sessions
// are deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*domainUser.User, *domainSession.Session, error) {
	if token == "" {
		return nil, nil, ErrUnauthenticated
	}
	sess, err := s.sessions.GetByTokenHash(ctx, domainSession.HashToken(token))
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrUnauthenticated
	}
	now := s.now().UTC()
	if sess.IsExpired(now) {
		if err := s.sessions.Delete(ctx, sess.TokenHash); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("expired session delete failed")
		}
		return nil, nil, ErrUnauthenticated
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !u.IsActive() {
		return nil, nil, ErrUnauthenticated
	}
	if sess.NeedsTouch(now) {
		if err := s.sessions.Touch(ctx, sess.SessionID, now); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("session touch failed")
		} else {
			sess.LastSeenAt = &now
		}
	}
	return u, sess, nil
}

// Logout ends the session of token. An empty or unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, domainSession.HashToken(token))
}

// RevokeUser ends every session of userID except keep.
func (s *Service) RevokeUser(ctx context.Context, userID, keep uuid.UUID) (int, error) {
	n, err := s.sessions.DeleteByUser(ctx, userID, keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Str("user_id", userID.String()).Int("count", n).Msg("sessions revoked")
	}
	return n, nil
}

// PurgeExpired removes expired sessions.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Int("count", n).Msg("expired sessions purged")
	}
	return n, nil
}
