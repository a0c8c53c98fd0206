package message

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const tempIDPrefix = "tmp-"

// Entry is a message as seen by a local view. Pending entries carry a TempID
// and a zero ID until the durable insert is acknowledged.
type Entry struct {
	Message
	TempID  string `json:"temp_id,omitempty"`
	Pending bool   `json:"pending"`
}

// Timeline is a local message store keyed by durable id with an overlay of
// pending (unconfirmed) sends. Every pending entry ends up either replaced by
// its durable message or rolled back.
type Timeline struct {
	mu        sync.Mutex
	confirmed map[uuid.UUID]*Message
	pending   []*Entry
}

func NewTimeline() *Timeline {
	return &Timeline{confirmed: make(map[uuid.UUID]*Message)}
}

// Load seeds the timeline with already persisted messages.
func (t *Timeline) Load(msgs []*Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		if m == nil {
			continue
		}
		cp := *m
		t.confirmed[m.ID] = &cp
	}
}

// AddPending appends an optimistic entry and returns its temporary id.
func (t *Timeline) AddPending(conversationID, senderID uuid.UUID, content string) (string, error) {
	content, err := NormalizeContent(content)
	if err != nil {
		return "", err
	}
	tempID := tempIDPrefix + ulid.Make().String()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, &Entry{
		Message: Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		},
		TempID:  tempID,
		Pending: true,
	})
	return tempID, nil
}

// Confirm replaces the pending entry with its durable message. If a push for
// the same durable id already arrived, the pending entry is simply dropped.
func (t *Timeline) Confirm(tempID string, durable *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removePending(tempID)
	if durable == nil {
		return
	}
	if _, ok := t.confirmed[durable.ID]; ok {
		return
	}
	cp := *durable
	t.confirmed[durable.ID] = &cp
}

// Rollback removes a pending entry after a failed send and returns its content
// so it can be restored to the compose input.
func (t *Timeline) Rollback(tempID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.removePending(tempID)
	if e == nil {
		return "", false
	}
	return e.Content, true
}

// Observe applies a pushed message. Duplicates of confirmed messages are
// ignored; a pending entry with the same sender and content is reconciled.
// It reports whether the timeline changed.
func (t *Timeline) Observe(m *Message) bool {
	if m == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.confirmed[m.ID]; ok {
		return false
	}
	for i, p := range t.pending {
		if p.SenderID == m.SenderID && p.Content == m.Content {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	cp := *m
	t.confirmed[m.ID] = &cp
	return true
}

// MarkRead flips is_read on known messages and returns how many changed.
func (t *Timeline) MarkRead(ids []uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, id := range ids {
		if m, ok := t.confirmed[id]; ok && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n
}

// PendingCount returns the number of unconfirmed entries.
func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Messages returns confirmed and pending entries ordered by creation time.
func (t *Timeline) Messages() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		out = append(out, Entry{Message: *m})
	}
	for _, p := range t.pending {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pending != out[j].Pending {
			return !out[i].Pending
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (t *Timeline) removePending(tempID string) *Entry {
	for i, p := range t.pending {
		if p.TempID == tempID {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return p
		}
	}
	return nil
}
