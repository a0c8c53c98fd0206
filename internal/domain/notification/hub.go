package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_publisher.go -package=mocks . Publisher

import "context"

// Hub manages the SSE connections of this process.
type Hub interface {
	Register(client *SSEClient)
	Unregister(clientID string)
	GetClientCount() int
	BroadcastToUser(userID string, message *SSEMessage)
	Stop()
}

// Publisher delivers events to every process serving the recipients.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Deliver fans an event out to its recipients on a local hub.
func Deliver(h Hub, event *Event) {
	msg := event.SSEMessage()
	for _, r := range event.Recipients {
		h.BroadcastToUser(r, msg)
	}
}
