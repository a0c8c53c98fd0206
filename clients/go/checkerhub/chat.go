package checkerhub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
)

// SendError is returned when a message could not be stored. Content holds
// the text so it can be put back into the compose box.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Chat keeps the local view of one conversation's messages. Sends show up
// immediately as pending entries and are replaced by the stored message once
// the server acknowledges them.
type Chat struct {
	client         *Client
	conversationID uuid.UUID
	selfID         uuid.UUID
	timeline       *message.Timeline
}

func NewChat(client *Client, conversationID, selfID uuid.UUID) *Chat {
	return &Chat{
		client:         client,
		conversationID: conversationID,
		selfID:         selfID,
		timeline:       message.NewTimeline(),
	}
}

// Load fetches the latest page of messages into the view.
func (c *Chat) Load(ctx context.Context, limit int) error {
	msgs, err := c.client.Messages(ctx, c.conversationID, limit, nil)
	if err != nil {
		return err
	}
	c.timeline.Load(msgs)
	return nil
}

// Send posts content. On failure the pending entry is removed and a
// *SendError carrying the content is returned.
func (c *Chat) Send(ctx context.Context, content string) (*message.Message, error) {
	tempID, err := c.timeline.AddPending(c.conversationID, c.selfID, content)
	if err != nil {
		return nil, err
	}
	m, err := c.client.SendMessage(ctx, c.conversationID, content)
	if err != nil {
		restored, _ := c.timeline.Rollback(tempID)
		return nil, &SendError{Content: restored, Err: err}
	}
	c.timeline.Confirm(tempID, m)
	return m, nil
}

// Handle applies a pushed event. Events for other conversations and unknown
// types are ignored. It reports whether the view changed.
func (c *Chat) Handle(ev Event) (bool, error) {
	switch notification.EventType(ev.Type) {
	case notification.EventMessageCreated:
		var m message.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return false, err
		}
		if m.ConversationID != c.conversationID {
			return false, nil
		}
		return c.timeline.Observe(&m), nil
	case notification.EventMessageRead:
		var p notification.ReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, err
		}
		if p.ConversationID != c.conversationID {
			return false, nil
		}
		return c.timeline.MarkRead(p.MessageIDs) > 0, nil
	}
	return false, nil
}

// MarkRead marks the other party's messages read on the server and in the
// view.
func (c *Chat) MarkRead(ctx context.Context) error {
	ids, err := c.client.MarkRead(ctx, c.conversationID)
	if err != nil {
		return err
	}
	c.timeline.MarkRead(ids)
	return nil
}

// Messages returns the current view, stored messages first then pending
// sends.
func (c *Chat) Messages() []message.Entry {
	return c.timeline.Messages()
}
