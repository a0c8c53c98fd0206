package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIsExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(time.Minute)))
	assert.True(t, s.IsExpired(now.Add(time.Hour)))
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	s, token, err := New(userID, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
	assert.Equal(t, HashToken(token), s.TokenHash)
	assert.NotEqual(t, token, s.TokenHash)
	assert.Len(t, s.TokenHash, 64)

	_, other, err := New(userID, time.Hour, now)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestNeedsTouch(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{}
	assert.True(t, s.NeedsTouch(now))

	seen := now
	s.LastSeenAt = &seen
	assert.False(t, s.NeedsTouch(now.Add(30*time.Second)))
	assert.True(t, s.NeedsTouch(now.Add(TouchInterval)))
}
