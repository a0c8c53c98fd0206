// Package memory holds mutex-guarded implementations of the repository ports.
// It backs the server when no database is configured and the service tests.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/checker"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/session"
	"github.com/checkerhub/checkerhub/internal/domain/user"
)

// Store is a single in-process dataset shared by all repositories so joins
// (conversation details, support lookups) see a consistent view.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*user.User
	sessions      map[string]*session.Session
	checkers      map[uuid.UUID]*checker.Checker
	conversations map[uuid.UUID]*conversation.Conversation
	transitions   map[uuid.UUID][]*conversation.Transition
	messages      map[uuid.UUID][]*message.Message
	nextUserID    int64
	nextSessionID int64
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*user.User),
		sessions:      make(map[string]*session.Session),
		checkers:      make(map[uuid.UUID]*checker.Checker),
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		transitions:   make(map[uuid.UUID][]*conversation.Transition),
		messages:      make(map[uuid.UUID][]*message.Message),
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{s: s}
}

func (s *Store) Checkers() *CheckerRepository {
	return &CheckerRepository{s: s}
}

func (s *Store) Conversations() *ConversationRepository {
	return &ConversationRepository{s: s}
}

func (s *Store) Messages() *MessageRepository {
	return &MessageRepository{s: s}
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
