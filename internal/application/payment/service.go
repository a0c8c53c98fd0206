package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/application/support"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	domain "github.com/checkerhub/checkerhub/internal/domain/payment"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

var (
	ErrOrderIDRequired     = errors.New("order_id is required")
	ErrReceiptsUnavailable = errors.New("receipt storage is not configured")
)

// Config holds payment verification settings.
type Config struct {
	Currency        string
	MaxReceiptBytes int64
}

// Service captures payments for approved bookings.
type Service struct {
	conversations conversation.Repository
	verifier      domain.Verifier
	receipts      domain.ReceiptStore
	support       *support.Service
	cfg           Config
	notifier      *notify.Notifier
	logger        zerolog.Logger
}

// NewService creates a payment service. A nil verifier makes ConfirmCheckout
// fail with ErrVerifierUnavailable.
func NewService(conversations conversation.Repository, verifier domain.Verifier, receipts domain.ReceiptStore, supportSvc *support.Service, cfg Config, notifier *notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		verifier:      verifier,
		receipts:      receipts,
		support:       supportSvc,
		cfg:           cfg,
		notifier:      notifier,
		logger:        logger.With().Str("service", "payment").Logger(),
	}
}

// ConfirmCheckout verifies a hosted-checkout order with the provider and marks
// the booking paid. The client callback only triggers verification.
func (s *Service) ConfirmCheckout(ctx context.Context, actor authz.Actor, conversationID uuid.UUID, orderID string) (*conversation.Detail, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrOrderIDRequired
	}
	c, err := s.clientBooking(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	// A retried callback for the order that already paid this booking.
	if c.Status == conversation.StatusPaid && c.PaymentRef != nil && *c.PaymentRef == orderID {
		return s.detail(ctx, c.ID)
	}
	if err := c.CanApply(conversation.EventCheckoutPaid); err != nil {
		metrics.TransitionConflicts.WithLabelValues(string(conversation.EventCheckoutPaid)).Inc()
		return nil, err
	}
	if s.verifier == nil {
		return nil, domain.ErrVerifierUnavailable
	}

	capture, err := s.verifier.VerifyOrder(ctx, orderID)
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Str("order_id", orderID).Msg("order verification failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrVerificationFailed, err)
	}
	if err := capture.Check(c.Price, s.cfg.Currency); err != nil {
		metrics.PaymentVerifications.WithLabelValues("rejected").Inc()
		s.logger.Warn().Err(err).Str("conversation_id", c.ID.String()).Str("order_id", orderID).Msg("order does not cover booking")
		return nil, err
	}
	metrics.PaymentVerifications.WithLabelValues("verified").Inc()

	ch, err := conversation.PlanChange(c.ID, conversation.EventCheckoutPaid, actor.Ref(), "hosted checkout "+orderID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ch.WithPaymentRef(orderID))
}

// ReceiptResult is the outcome of a manual receipt upload. The support fork
// is a separate write: SupportErr is set when the booking moved to
// payment_pending but the support conversation could not be opened.
type ReceiptResult struct {
	Conversation *conversation.Detail
	Support      *support.Result
	SupportErr   error
}

// SubmitReceipt stores a receipt, moves the booking to payment_pending with
// the receipt URL in the same update, then opens the support conversation.
func (s *Service) SubmitReceipt(ctx context.Context, actor authz.Actor, conversationID uuid.UUID, data []byte) (*ReceiptResult, error) {
	c, err := s.clientBooking(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if err := c.CanApply(conversation.EventReceiptUploaded); err != nil {
		metrics.TransitionConflicts.WithLabelValues(string(conversation.EventReceiptUploaded)).Inc()
		return nil, err
	}
	contentType, ext, err := domain.DetectReceiptType(data, s.cfg.MaxReceiptBytes)
	if err != nil {
		return nil, err
	}
	if s.receipts == nil {
		return nil, ErrReceiptsUnavailable
	}
	url, err := s.receipts.Put(ctx, domain.ReceiptKey(c.ID, ext), contentType, data)
	if err != nil {
		return nil, err
	}

	ch, err := conversation.PlanChange(c.ID, conversation.EventReceiptUploaded, actor.Ref(), "manual receipt")
	if err != nil {
		return nil, err
	}
	d, err := s.apply(ctx, ch.WithReceipt(url))
	if err != nil {
		return nil, err
	}

	res := &ReceiptResult{Conversation: d}
	if s.support != nil {
		res.Support, res.SupportErr = s.support.Open(ctx, &d.Conversation)
		if res.SupportErr != nil {
			s.logger.Error().Err(res.SupportErr).Str("conversation_id", d.ID.String()).Msg("failed to open support conversation")
		}
	}
	return res, nil
}

func (s *Service) clientBooking(ctx context.Context, actor authz.Actor, id uuid.UUID) (*conversation.Conversation, error) {
	c, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, conversation.ErrNotFound
	}
	if c.ClientID != actor.UserID {
		return nil, authz.ErrForbidden
	}
	return c, nil
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
		Str("conversation_id", d.ID.String()).
		Str("event", string(ch.Event)).
		Str("status", string(d.Status)).
		Msg("payment recorded")
	return d, nil
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
