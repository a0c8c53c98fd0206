package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

// Notifier publishes realtime events after durable writes. Delivery is best
// effort: a failed publish is logged and never fails the operation.
type Notifier struct {
	pub    notification.Publisher
	logger zerolog.Logger
}

// New creates a notifier. A nil publisher disables delivery.
func New(pub notification.Publisher, logger zerolog.Logger) *Notifier {
	return &Notifier{
		pub:    pub,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Conversation sends a conversation event to both parties.
func (n *Notifier) Conversation(ctx context.Context, eventType notification.EventType, d *conversation.Detail) {
	if d == nil {
		return
	}
	n.Send(ctx, eventType, d.ID, d, d.ClientID, d.CheckerUserID)
}

// Send publishes payload to the given users.
func (n *Notifier) Send(ctx context.Context, eventType notification.EventType, conversationID uuid.UUID, payload interface{}, recipients ...uuid.UUID) {
	if n == nil || n.pub == nil {
		return
	}
	event, err := notification.NewEvent(eventType, conversationID, payload, recipients...)
	if err != nil {
		n.logger.Error().Err(err).Str("type", string(eventType)).Msg("failed to build event")
		return
	}
	if len(event.Recipients) == 0 {
		return
	}
	if err := n.pub.Publish(ctx, event); err != nil {
		n.logger.Warn().Err(err).Str("type", string(eventType)).Str("conversation_id", conversationID.String()).Msg("failed to publish event")
		return
	}
	metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
}
