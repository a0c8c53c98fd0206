package conversation

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/message"
)

// Filter controls conversation listing.
type Filter struct {
	ClientID      *uuid.UUID
	CheckerID     *uuid.UUID
	Status        *Status
	IncludeHidden bool
}

// Repository defines persistence for conversations.
type Repository interface {
	// Create inserts a conversation. It returns ErrDuplicateOpen when an open
	// conversation already exists for the same client and checker.
	Create(ctx context.Context, c *Conversation) error
	// CreateSupport inserts a support conversation together with its first message.
	CreateSupport(ctx context.Context, c *Conversation, first *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	FindOpen(ctx context.Context, clientID, checkerID uuid.UUID) (*Conversation, error)
	FindLatest(ctx context.Context, clientID, checkerID uuid.UUID) (*Conversation, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Detail, error)
	// Apply performs the guarded update and records the transition atomically.
	// It returns *ConflictError when the stored status is not in ch.From.
	Apply(ctx context.Context, ch Change) (*Conversation, error)
	ListTransitions(ctx context.Context, id uuid.UUID) ([]*Transition, error)
	// Hide soft-deletes the conversation for one side and hard-deletes it once
	// both sides have hidden it. deleted reports the hard delete.
	Hide(ctx context.Context, id uuid.UUID, side Side) (deleted bool, err error)
}
