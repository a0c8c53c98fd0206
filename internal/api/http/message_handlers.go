package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid limit")
			return
		}
		limit = n
	}
	var before *time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}
	msgs, err := s.svc.Messages.List(r.Context(), actorOf(r), id, limit, before)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// sendMessage leaves content validation to the messaging service so that
// empty and oversized bodies get the same errors as other callers.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !s.bind(w, r, &req) {
		return
	}
	m, err := s.svc.Messages.Send(r.Context(), actorOf(r), id, req.Content)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	ids, err := s.svc.Messages.MarkRead(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"message_ids": ids, "count": len(ids)})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	n, err := s.svc.Messages.Unread(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"unread": n})
}
