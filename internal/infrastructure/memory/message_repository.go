package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
)

// MessageRepository implements message.Repository.
type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[m.ConversationID]
	if !ok {
		return conversation.ErrNotFound
	}
	cp := *m
	r.s.messages[m.ConversationID] = append(r.s.messages[m.ConversationID], &cp)
	c.UpdatedAt = m.CreatedAt
	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*message.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*message.Message
	for _, m := range r.s.messages[conversationID] {
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != viewerID && !m.IsRead {
			m.IsRead = true
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != viewerID && !m.IsRead {
			n++
		}
	}
	return n, nil
}
