package redisbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/infrastructure/sse"
)

func TestLocalPublisher(t *testing.T) {
	hub := sse.NewHub()
	alice, bob := uuid.New(), uuid.New()
	ac := notification.NewSSEClient("a", alice.String())
	bc := notification.NewSSEClient("b", bob.String())
	other := notification.NewSSEClient("c", uuid.NewString())
	hub.Register(ac)
	hub.Register(bc)
	hub.Register(other)

	ev, err := notification.NewEvent(notification.EventMessageCreated, uuid.New(), map[string]string{"content": "hi"}, alice, bob)
	require.NoError(t, err)
	require.NoError(t, NewLocalPublisher(hub).Publish(context.Background(), ev))

	require.Len(t, ac.MessageChan, 1)
	assert.Len(t, bc.MessageChan, 1)
	assert.Len(t, other.MessageChan, 0)

	msg := <-ac.MessageChan
	assert.Equal(t, ev.ID, msg.ID)
	assert.Equal(t, "message.created", msg.Event)
}

func TestBusDispatch(t *testing.T) {
	hub := sse.NewHub()
	user := uuid.New()
	c := notification.NewSSEClient("a", user.String())
	hub.Register(c)
	b := New(nil, DefaultChannel, hub, zerolog.Nop())

	ev, err := notification.NewEvent(notification.EventConversationUpdated, uuid.New(), map[string]string{"status": "paid"}, user)
	require.NoError(t, err)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	b.dispatch(data)
	require.Len(t, c.MessageChan, 1)
	msg := <-c.MessageChan
	assert.JSONEq(t, `{"status":"paid"}`, string(msg.Data))

	b.dispatch([]byte("not json"))
	assert.Len(t, c.MessageChan, 0)
}
