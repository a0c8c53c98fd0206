package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkerhub/checkerhub/internal/domain/notification"
)

func TestHub_BroadcastToUser(t *testing.T) {
	h := NewHub()
	a1 := notification.NewSSEClient("a1", "alice")
	a2 := notification.NewSSEClient("a2", "alice")
	b := notification.NewSSEClient("b1", "bob")
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	require.Equal(t, 3, h.GetClientCount())

	msg := &notification.SSEMessage{ID: "1", Event: "message.created"}
	h.BroadcastToUser("alice", msg)

	assert.Len(t, a1.MessageChan, 1)
	assert.Len(t, a2.MessageChan, 1)
	assert.Len(t, b.MessageChan, 0)
}

func TestHub_BroadcastDropsOnFullBuffer(t *testing.T) {
	h := NewHub()
	slow := &notification.SSEClient{ClientID: "slow", UserID: "alice", MessageChan: make(chan *notification.SSEMessage, 1)}
	fast := notification.NewSSEClient("fast", "alice")
	h.Register(slow)
	h.Register(fast)

	h.BroadcastToUser("alice", &notification.SSEMessage{ID: "1"})
	h.BroadcastToUser("alice", &notification.SSEMessage{ID: "2"})

	require.Len(t, slow.MessageChan, 1)
	assert.Equal(t, "1", (<-slow.MessageChan).ID)
	assert.Len(t, fast.MessageChan, 2)
	assert.Equal(t, 2, h.GetClientCount())
}

func TestHub_UnregisterAndStop(t *testing.T) {
	h := NewHub()
	a := notification.NewSSEClient("a", "alice")
	b := notification.NewSSEClient("b", "bob")
	h.Register(a)
	h.Register(b)

	h.Unregister("a")
	_, open := <-a.MessageChan
	assert.False(t, open)
	assert.Equal(t, 1, h.GetClientCount())

	h.Unregister("a")
	h.Stop()
	_, open = <-b.MessageChan
	assert.False(t, open)
	assert.Equal(t, 0, h.GetClientCount())
}

func TestHub_RegisterReplacesClient(t *testing.T) {
	h := NewHub()
	first := notification.NewSSEClient("same", "alice")
	second := notification.NewSSEClient("same", "alice")
	h.Register(first)
	h.Register(second)

	_, open := <-first.MessageChan
	assert.False(t, open)
	assert.Equal(t, 1, h.GetClientCount())
}

func TestHub_UserIndex(t *testing.T) {
	h := NewHub()
	h.Register(notification.NewSSEClient("a1", "alice"))
	h.Register(notification.NewSSEClient("a2", "alice"))
	assert.Equal(t, 2, h.UserConnections("alice"))

	// Reusing a client id for another user moves it between indexes.
	h.Register(notification.NewSSEClient("a2", "bob"))
	assert.Equal(t, 1, h.UserConnections("alice"))
	assert.Equal(t, 1, h.UserConnections("bob"))

	h.Unregister("a1")
	assert.Equal(t, 0, h.UserConnections("alice"))
	assert.Equal(t, 1, h.GetClientCount())
}

func TestHub_RegisterAfterStop(t *testing.T) {
	h := NewHub()
	h.Stop()
	late := notification.NewSSEClient("late", "alice")
	h.Register(late)

	_, open := <-late.MessageChan
	assert.False(t, open)
	assert.Equal(t, 0, h.GetClientCount())
}
