package message

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	// ListByConversation returns messages oldest first. A non-nil before limits
	// the page to messages created strictly earlier.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error)
	// MarkRead flips is_read for unread messages not sent by the viewer and
	// returns the ids it changed.
	MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID) ([]uuid.UUID, error)
	CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error)
}
