package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TouchInterval is how stale last_seen_at must be before a request refreshes
// it.
const TouchInterval = time.Minute

// Session is a login session. Only the SHA-256 of its bearer token is stored.
type Session struct {
	ID         int64      `json:"-"`
	SessionID  uuid.UUID  `json:"session_id"`
	TokenHash  string     `json:"-"`
	UserID     uuid.UUID  `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	IPAddress  *string    `json:"ip_address,omitempty"`
}

// New opens a session for userID valid for ttl and returns it together with
// the bearer token handed to the client.
func New(userID uuid.UUID, ttl time.Duration, now time.Time) (*Session, string, error) {
	token, err := NewToken()
	if err != nil {
		return nil, "", err
	}
	now = now.UTC()
	return &Session{
		SessionID:  uuid.New(),
		TokenHash:  HashToken(token),
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: &now,
	}, token, nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NeedsTouch reports whether last_seen_at is older than TouchInterval.
func (s *Session) NeedsTouch(now time.Time) bool {
	return s.LastSeenAt == nil || now.Sub(*s.LastSeenAt) >= TouchInterval
}

// NewToken returns 32 random bytes, URL-safe encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
