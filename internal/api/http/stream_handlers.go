package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/notification"
)

const keepAliveInterval = 25 * time.Second

// stream serves the caller's realtime events as server-sent events. Each
// frame carries the event type and its JSON payload.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	auth := callerFrom(r.Context())
	clientID := uuid.NewString()
	client := notification.NewSSEClient(clientID, auth.UserID.String())
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case msg, open := <-client.MessageChan:
			if !open || msg == nil {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, msg *notification.SSEMessage) error {
	frame := "id: " + msg.ID + "\nevent: " + msg.Event + "\ndata: " + string(msg.Data) + "\n\n"
	_, err := w.Write([]byte(frame))
	return err
}
