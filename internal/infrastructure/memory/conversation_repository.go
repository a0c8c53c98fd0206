package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
)

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct {
	s *Store
}

func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertConversation(c)
}

func (r *ConversationRepository) CreateSupport(ctx context.Context, c *conversation.Conversation, first *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.insertConversation(c); err != nil {
		return err
	}
	if first != nil {
		cp := *first
		r.s.messages[c.ID] = append(r.s.messages[c.ID], &cp)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *ConversationRepository) GetDetail(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	return r.s.detail(c), nil
}

func (r *ConversationRepository) FindOpen(ctx context.Context, clientID, checkerID uuid.UUID) (*conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c := r.s.openFor(clientID, checkerID); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *ConversationRepository) FindLatest(ctx context.Context, clientID, checkerID uuid.UUID) (*conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *conversation.Conversation
	for _, c := range r.s.conversations {
		if c.ClientID != clientID || c.CheckerID != checkerID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *ConversationRepository) List(ctx context.Context, filter conversation.Filter, limit, offset int) ([]*conversation.Detail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*conversation.Detail
	for _, c := range r.s.conversations {
		if filter.ClientID != nil {
			if c.ClientID != *filter.ClientID || (c.ClientHidden && !filter.IncludeHidden) {
				continue
			}
		}
		if filter.CheckerID != nil {
			if c.CheckerID != *filter.CheckerID || (c.CheckerHidden && !filter.IncludeHidden) {
				continue
			}
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, r.s.detail(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, limit, offset), nil
}

func (r *ConversationRepository) Apply(ctx context.Context, ch conversation.Change) (*conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.conversations[ch.ConversationID]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	if ch.PaymentRef != nil {
		for id, c := range r.s.conversations {
			if id != ch.ConversationID && c.PaymentRef != nil && *c.PaymentRef == *ch.PaymentRef {
				return nil, conversation.ErrDuplicatePayment
			}
		}
	}
	next := *stored
	tr, err := next.Apply(ch)
	if err != nil {
		return nil, err
	}
	r.s.conversations[next.ID] = &next
	r.s.transitions[next.ID] = append(r.s.transitions[next.ID], tr)
	cp := next
	return &cp, nil
}

func (r *ConversationRepository) ListTransitions(ctx context.Context, id uuid.UUID) ([]*conversation.Transition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	trs := r.s.transitions[id]
	out := make([]*conversation.Transition, 0, len(trs))
	for _, tr := range trs {
		cp := *tr
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ConversationRepository) Hide(ctx context.Context, id uuid.UUID, side conversation.Side) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return false, conversation.ErrNotFound
	}
	switch side {
	case conversation.SideClient:
		c.ClientHidden = true
	case conversation.SideChecker:
		c.CheckerHidden = true
	}
	if c.ClientHidden && c.CheckerHidden {
		delete(r.s.conversations, id)
		delete(r.s.transitions, id)
		delete(r.s.messages, id)
		return true, nil
	}
	return false, nil
}

// insertConversation must be called with the write lock held.
func (s *Store) insertConversation(c *conversation.Conversation) error {
	if conversation.IsOpen(c.Status) && s.openFor(c.ClientID, c.CheckerID) != nil {
		return conversation.ErrDuplicateOpen
	}
	cp := *c
	s.conversations[c.ID] = &cp
	first := &conversation.Transition{
		ID:             uuid.New(),
		ConversationID: c.ID,
		Event:          creationEvent(c.Status),
		To:             c.Status,
		Actor:          "user:" + c.ClientID.String(),
		CreatedAt:      c.CreatedAt,
	}
	s.transitions[c.ID] = []*conversation.Transition{first}
	return nil
}

func (s *Store) openFor(clientID, checkerID uuid.UUID) *conversation.Conversation {
	for _, c := range s.conversations {
		if c.ClientID == clientID && c.CheckerID == checkerID && conversation.IsOpen(c.Status) {
			return c
		}
	}
	return nil
}

func (s *Store) detail(c *conversation.Conversation) *conversation.Detail {
	d := &conversation.Detail{Conversation: *c}
	if u, ok := s.users[c.ClientID]; ok {
		d.ClientName = u.Name()
	}
	if ch, ok := s.checkers[c.CheckerID]; ok {
		d.CheckerName = ch.DisplayName
		d.CheckerUserID = ch.UserID
	}
	return d
}

func creationEvent(status conversation.Status) conversation.Event {
	if status == conversation.StatusPaymentNegotiation {
		return conversation.EventOpenSupport
	}
	return conversation.EventRequestTest
}
