package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for sessions. Lookups return nil, nil when
// nothing matches.
type Repository interface {
	Create(ctx context.Context, session *Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	// Delete removes the session with tokenHash. Unknown hashes are not an error.
	Delete(ctx context.Context, tokenHash string) error
	// DeleteByUser revokes the sessions of userID except keep, which may be
	// uuid.Nil, and returns how many went.
	DeleteByUser(ctx context.Context, userID, keep uuid.UUID) (int, error)
	Touch(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
