package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Service handles the message log of conversations.
type Service struct {
	conversations conversation.Repository
	messages      message.Repository
	notifier      *notify.Notifier
	logger        zerolog.Logger
}

// NewService creates a messaging service.
func NewService(conversations conversation.Repository, messages message.Repository, notifier *notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		logger:        logger.With().Str("service", "messaging").Logger(),
	}
}

// Send appends a message from one of the two parties.
func (s *Service) Send(ctx context.Context, actor authz.Actor, conversationID uuid.UUID, content string) (*message.Message, error) {
	m, err := message.New(conversationID, actor.UserID, content)
	if err != nil {
		return nil, err
	}
	d, err := s.party(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	s.notifier.Send(ctx, notification.EventMessageCreated, conversationID, m, d.ClientID, d.CheckerUserID)
	s.logger.Debug().
		Str("conversation_id", conversationID.String()).
		Str("message_id", m.ID.String()).
		Msg("message sent")
	return m, nil
}

// List returns up to limit messages oldest first, optionally only those
// created before the given time.
func (s *Service) List(ctx context.Context, actor authz.Actor, conversationID uuid.UUID, limit int, before *time.Time) ([]*message.Message, error) {
	if _, err := s.party(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID, limit, before)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	return msgs, nil
}

// MarkRead flips every unread message not sent by the actor. Calling it again
// changes nothing.
func (s *Service) MarkRead(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) ([]uuid.UUID, error) {
	d, err := s.party(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	ids, err := s.messages.MarkRead(ctx, conversationID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	payload := notification.ReadPayload{ConversationID: conversationID, ReaderID: actor.UserID, MessageIDs: ids}
	s.notifier.Send(ctx, notification.EventMessageRead, conversationID, payload, d.ClientID, d.CheckerUserID)
	return ids, nil
}

// Unread counts messages the actor has not read yet.
func (s *Service) Unread(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (int, error) {
	if _, err := s.party(ctx, actor, conversationID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, conversationID, actor.UserID)
}

func (s *Service) party(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (*conversation.Detail, error) {
	d, err := s.conversations.GetDetail(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, conversation.ErrNotFound
	}
	if _, ok := d.SideOf(actor.UserID, d.CheckerUserID); !ok {
		return nil, authz.ErrForbidden
	}
	return d, nil
}
