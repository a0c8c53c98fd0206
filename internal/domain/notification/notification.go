package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a realtime event.
type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationUpdated EventType = "conversation.updated"
	EventMessageCreated      EventType = "message.created"
	EventMessageRead         EventType = "message.read"
)

// Event is a change pushed to the users listed in Recipients.
type Event struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Recipients     []string        `json:"recipients"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewEvent marshals payload into a new event.
func NewEvent(eventType EventType, conversationID uuid.UUID, payload interface{}, recipients ...uuid.UUID) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	to := make([]string, 0, len(recipients))
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	for _, r := range recipients {
		if r == uuid.Nil {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		to = append(to, r.String())
	}
	return &Event{
		ID:             uuid.New().String(),
		Type:           eventType,
		ConversationID: conversationID,
		Recipients:     to,
		Payload:        data,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// SSEMessage converts the event into its wire frame.
func (e *Event) SSEMessage() *SSEMessage {
	return &SSEMessage{
		ID:        e.ID,
		Event:     string(e.Type),
		Data:      e.Payload,
		Timestamp: e.CreatedAt,
	}
}

// ReadPayload is the payload of a message.read event.
type ReadPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	ReaderID       uuid.UUID   `json:"reader_id"`
	MessageIDs     []uuid.UUID `json:"message_ids"`
}

// SSEClient represents an active SSE connection
type SSEClient struct {
	ClientID    string
	UserID      string
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client
func NewSSEClient(clientID string, userID string) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Close closes the client's message channel
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE
type SSEMessage struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
