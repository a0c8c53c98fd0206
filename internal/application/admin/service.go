package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

// Service implements the operator lookup and activation tool.
type Service struct {
	conversations conversation.Repository
	authz         *authz.Authorizer
	notifier      *notify.Notifier
	logger        zerolog.Logger
}

// NewService creates an admin service.
func NewService(conversations conversation.Repository, az *authz.Authorizer, notifier *notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		authz:         az,
		notifier:      notifier,
		logger:        logger.With().Str("service", "admin").Logger(),
	}
}

// Result is what the operator sees for a conversation.
type Result struct {
	Conversation  *conversation.Detail `json:"conversation"`
	AlreadyActive bool                 `json:"already_active"`
	Activated     bool                 `json:"activated"`
}

// NormalizeID parses a pasted conversation id, tolerating surrounding
// whitespace, quotes, brackets and a leading '#'.
func NormalizeID(raw string) (uuid.UUID, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`<>[](){} \t")
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, conversation.ErrNotFound
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, conversation.ErrNotFound
	}
	return id, nil
}

// Lookup fetches a conversation by pasted id.
func (s *Service) Lookup(ctx context.Context, actor authz.Actor, raw string) (*Result, error) {
	if err := s.authz.RequireOperator(actor); err != nil {
		return nil, err
	}
	d, err := s.find(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &Result{Conversation: d, AlreadyActive: d.IsUnlocked()}, nil
}

// Activate overrides a non-terminal conversation to approved. Activating an
// approved or paid conversation changes nothing and reports AlreadyActive.
func (s *Service) Activate(ctx context.Context, actor authz.Actor, raw string) (*Result, error) {
	if err := s.authz.RequireOperator(actor); err != nil {
		return nil, err
	}
	d, err := s.find(ctx, raw)
	if err != nil {
		return nil, err
	}
	if d.IsUnlocked() {
		return &Result{Conversation: d, AlreadyActive: true}, nil
	}

	ch, err := conversation.PlanChange(d.ID, conversation.EventAdminActivate, actor.Ref(), "operator activation")
	if err != nil {
		return nil, err
	}
	if _, err := s.conversations.Apply(ctx, ch); err != nil {
		var conflict *conversation.ConflictError
		if errors.As(err, &conflict) {
			// Lost a race with a transition into an unlocked status.
			if conversation.IsUnlocked(conflict.Current) {
				d, ferr := s.find(ctx, d.ID.String())
				if ferr != nil {
					return nil, ferr
				}
				return &Result{Conversation: d, AlreadyActive: true}, nil
			}
			metrics.TransitionConflicts.WithLabelValues(string(ch.Event)).Inc()
		}
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(ch.Event), string(ch.To)).Inc()

	updated, err := s.find(ctx, d.ID.String())
	if err != nil {
		return nil, err
	}
	s.notifier.Conversation(ctx, notification.EventConversationUpdated, updated)
	s.logger.Info().
		Str("conversation_id", d.ID.String()).
		Str("from", string(d.Status)).
		Str("operator", actor.UserID.String()).
		Msg("conversation activated")
	return &Result{Conversation: updated, Activated: true}, nil
}

func (s *Service) find(ctx context.Context, raw string) (*conversation.Detail, error) {
	id, err := NormalizeID(raw)
	if err != nil {
		return nil, err
	}
	d, err := s.conversations.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, conversation.ErrNotFound
	}
	return d, nil
}
