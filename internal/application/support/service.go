package support

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
	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

var (
	ErrSupportUnavailable = errors.New("support escalation is not configured")
	ErrSupportThread      = errors.New("conversation is already a support conversation")
)

// Service opens the payment_negotiation thread between a client and the
// admin checker.
type Service struct {
	conversations conversation.Repository
	checkers      checker.Repository
	authz         *authz.Authorizer
	notifier      *notify.Notifier
	logger        zerolog.Logger
}

// NewService creates a support service.
func NewService(conversations conversation.Repository, checkers checker.Repository, az *authz.Authorizer, notifier *notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		checkers:      checkers,
		authz:         az,
		notifier:      notifier,
		logger:        logger.With().Str("service", "support").Logger(),
	}
}

// Result is the support conversation and whether this call created it.
type Result struct {
	Conversation *conversation.Detail
	Created      bool
}

// ForBooking opens support for a booking on behalf of its client.
func (s *Service) ForBooking(ctx context.Context, actor authz.Actor, bookingID uuid.UUID) (*Result, error) {
	booking, err := s.conversations.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, conversation.ErrNotFound
	}
	if booking.ClientID != actor.UserID {
		return nil, authz.ErrForbidden
	}
	return s.Open(ctx, booking)
}

// Open finds the client's open support conversation or creates it with an
// initiating message that references the booking. Calling it again for the
// same client returns the same conversation.
func (s *Service) Open(ctx context.Context, booking *conversation.Conversation) (*Result, error) {
	admin, err := s.adminChecker(ctx)
	if err != nil {
		return nil, err
	}
	if admin.ID == booking.CheckerID {
		return nil, fmt.Errorf("%w: %s", ErrSupportThread, booking.ID)
	}

	existing, err := s.conversations.FindOpen(ctx, booking.ClientID, admin.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reused(ctx, existing.ID)
	}

	c := conversation.NewSupport(booking.ClientID, admin.ID)
	first, err := message.New(c.ID, booking.ClientID, IntroMessage(booking))
	if err != nil {
		return nil, err
	}
	if err := s.conversations.CreateSupport(ctx, c, first); err != nil {
		if !errors.Is(err, conversation.ErrDuplicateOpen) {
			metrics.SupportForks.WithLabelValues("failed").Inc()
			return nil, err
		}
		existing, err := s.conversations.FindOpen(ctx, booking.ClientID, admin.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, conversation.ErrDuplicateOpen
		}
		return s.reused(ctx, existing.ID)
	}

	d, err := s.conversations.GetDetail(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, conversation.ErrNotFound
	}
	metrics.SupportForks.WithLabelValues("created").Inc()
	s.notifier.Conversation(ctx, notification.EventConversationCreated, d)
	s.notifier.Send(ctx, notification.EventMessageCreated, c.ID, first, d.ClientID, d.CheckerUserID)
	s.logger.Info().
		Str("conversation_id", c.ID.String()).
		Str("booking_id", booking.ID.String()).
		Str("client_id", booking.ClientID.String()).
		Msg("support conversation opened")
	return &Result{Conversation: d, Created: true}, nil
}

// IntroMessage is the client's first message in a new support conversation.
func IntroMessage(booking *conversation.Conversation) string {
	text := fmt.Sprintf("I would like to pay manually for booking #%s (price %s).", booking.ID, booking.Price.String())
	if booking.ReceiptURL != nil && *booking.ReceiptURL != "" {
		text += " Receipt: " + *booking.ReceiptURL
	}
	return text
}

func (s *Service) adminChecker(ctx context.Context) (*checker.Checker, error) {
	supportUser := s.authz.SupportUserID()
	if supportUser == uuid.Nil {
		return nil, ErrSupportUnavailable
	}
	admin, err := s.checkers.GetByUserID(ctx, supportUser)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrSupportUnavailable
	}
	return admin, nil
}

func (s *Service) reused(ctx context.Context, id uuid.UUID) (*Result, error) {
	d, err := s.conversations.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, conversation.ErrNotFound
	}
	metrics.SupportForks.WithLabelValues("reused").Inc()
	return &Result{Conversation: d}, nil
}
