package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/domain/checker"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

var (
	// ErrBookingRejected is returned when the checker declined the pair's
	// latest booking. A rejected booking cannot be retried.
	ErrBookingRejected = errors.New("checker declined the previous request")
	ErrSelfBooking     = errors.New("cannot book a test with your own checker profile")
	// ErrSupportChecker is returned for booking requests against the admin
	// checker, which only hosts manual-payment threads.
	ErrSupportChecker = errors.New("the support checker does not take bookings")
)

// Role selects which side of the conversations a listing returns.
type Role string

const (
	RoleClient  Role = "client"
	RoleChecker Role = "checker"
)

// Service handles booking requests and checker decisions.
type Service struct {
	conversations conversation.Repository
	checkers      checker.Repository
	authz         *authz.Authorizer
	notifier      *notify.Notifier
	logger        zerolog.Logger
}

// NewService creates a booking service.
func NewService(conversations conversation.Repository, checkers checker.Repository, az *authz.Authorizer, notifier *notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		checkers:      checkers,
		authz:         az,
		notifier:      notifier,
		logger:        logger.With().Str("service", "booking").Logger(),
	}
}

// RequestResult is the outcome of a booking request.
type RequestResult struct {
	Conversation *conversation.Detail
	Reused       bool
}

// RequestTest opens a pending_approval conversation with a checker, or returns
// the pair's open conversation when one exists.
func (s *Service) RequestTest(ctx context.Context, actor authz.Actor, checkerID uuid.UUID) (*RequestResult, error) {
	ch, err := s.checkers.GetByID(ctx, checkerID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, checker.ErrNotFound
	}
	if !ch.IsActive {
		return nil, checker.ErrInactive
	}
	if ch.UserID == actor.UserID {
		return nil, ErrSelfBooking
	}
	if support := s.authz.SupportUserID(); support != uuid.Nil && ch.UserID == support {
		return nil, ErrSupportChecker
	}

	open, err := s.conversations.FindOpen(ctx, actor.UserID, ch.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return s.reused(ctx, open.ID)
	}

	latest, err := s.conversations.FindLatest(ctx, actor.UserID, ch.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Status == conversation.StatusRejected {
		return nil, ErrBookingRejected
	}

	c, err := conversation.New(actor.UserID, ch.ID, ch.Price)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.Create(ctx, c); err != nil {
		if !errors.Is(err, conversation.ErrDuplicateOpen) {
			return nil, err
		}
		// A concurrent request won the insert; hand back its row.
		open, err := s.conversations.FindOpen(ctx, actor.UserID, ch.ID)
		if err != nil {
			return nil, err
		}
		if open == nil {
			return nil, conversation.ErrDuplicateOpen
		}
		return s.reused(ctx, open.ID)
	}

	d, err := s.detail(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	metrics.ConversationsCreated.WithLabelValues("created").Inc()
	s.notifier.Conversation(ctx, notification.EventConversationCreated, d)
	s.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("client_id", actor.UserID.String()).
		Str("checker_id", ch.ID.String()).
		Str("price", c.Price.String()).
		Msg("test requested")
	return &RequestResult{Conversation: d}, nil
}

// Accept moves a pending_approval booking to approved.
func (s *Service) Accept(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (*conversation.Detail, error) {
	return s.decide(ctx, actor, conversationID, conversation.EventAccept)
}

// Decline moves a pending_approval booking to the terminal rejected status.
func (s *Service) Decline(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (*conversation.Detail, error) {
	return s.decide(ctx, actor, conversationID, conversation.EventDecline)
}

func (s *Service) decide(ctx context.Context, actor authz.Actor, conversationID uuid.UUID, event conversation.Event) (*conversation.Detail, error) {
	d, err := s.detail(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	// Operators override through admin activation, never here.
	if d.CheckerUserID != actor.UserID {
		return nil, authz.ErrForbidden
	}
	if err := d.CanApply(event); err != nil {
		metrics.TransitionConflicts.WithLabelValues(string(event)).Inc()
		return nil, err
	}
	ch, err := conversation.PlanChange(conversationID, event, actor.Ref(), "")
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ch)
}

// Get returns a conversation visible to the actor.
func (s *Service) Get(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (*conversation.Detail, error) {
	d, err := s.detail(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !isParty(d, actor) && !s.authz.IsOperator(actor) {
		return nil, authz.ErrForbidden
	}
	return d, nil
}

// List returns the actor's conversations on one side, newest activity first.
// Conversations the actor hid are excluded.
func (s *Service) List(ctx context.Context, actor authz.Actor, role Role, status *conversation.Status, limit, offset int) ([]*conversation.Detail, error) {
	filter := conversation.Filter{Status: status}
	switch role {
	case RoleChecker:
		ch, err := s.checkers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return []*conversation.Detail{}, nil
		}
		filter.CheckerID = &ch.ID
	case RoleClient, "":
		filter.ClientID = &actor.UserID
	default:
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	return s.conversations.List(ctx, filter, limit, offset)
}

// Transitions returns the status history of a conversation.
func (s *Service) Transitions(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) ([]*conversation.Transition, error) {
	if _, err := s.Get(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	return s.conversations.ListTransitions(ctx, conversationID)
}

// Hide soft-deletes the conversation for the actor's side. It reports whether
// the conversation was removed because both sides have now hidden it.
func (s *Service) Hide(ctx context.Context, actor authz.Actor, conversationID uuid.UUID) (bool, error) {
	d, err := s.detail(ctx, conversationID)
	if err != nil {
		return false, err
	}
	side, ok := d.SideOf(actor.UserID, d.CheckerUserID)
	if !ok {
		return false, authz.ErrForbidden
	}
	deleted, err := s.conversations.Hide(ctx, conversationID, side)
	if err != nil {
		return false, err
	}
	s.logger.Info().
		Str("conversation_id", conversationID.String()).
		Str("side", string(side)).
		Bool("deleted", deleted).
		Msg("conversation hidden")
	return deleted, nil
}

func (s *Service) apply(ctx context.Context, ch conversation.Change) (*conversation.Detail, error) {
	if _, err := s.conversations.Apply(ctx, ch); err != nil {
		var conflict *conversation.ConflictError
		if errors.As(err, &conflict) {
			metrics.TransitionConflicts.WithLabelValues(string(ch.Event)).Inc()
		}
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(ch.Event), string(ch.To)).Inc()
	d, err := s.detail(ctx, ch.ConversationID)
	if err != nil {
		return nil, err
	}
	s.notifier.Conversation(ctx, notification.EventConversationUpdated, d)
	s.logger.Info().
		Str("conversation_id", ch.ConversationID.String()).
		Str("event", string(ch.Event)).
		Str("status", string(d.Status)).
		Str("actor", ch.Actor).
		Msg("conversation transitioned")
	return d, nil
}

func (s *Service) reused(ctx context.Context, id uuid.UUID) (*RequestResult, error) {
	d, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.ConversationsCreated.WithLabelValues("reused").Inc()
	return &RequestResult{Conversation: d, Reused: true}, nil
}

func (s *Service) detail(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	d, err := s.conversations.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, conversation.ErrNotFound
	}
	return d, nil
}

func isParty(d *conversation.Detail, actor authz.Actor) bool {
	_, ok := d.SideOf(actor.UserID, d.CheckerUserID)
	return ok
}
