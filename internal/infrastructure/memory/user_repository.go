package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/session"
	"github.com/checkerhub/checkerhub/internal/domain/user"
)

// UserRepository implements user.Repository.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return user.ErrUsernameTaken
		}
	}
	r.s.nextUserID++
	u.ID = r.s.nextUserID
	cp := *u
	r.s.users[u.UserID] = &cp
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.UserID]; !ok {
		return user.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != u.UserID && existing.Username == u.Username {
			return user.ErrUsernameTaken
		}
	}
	cp := *u
	r.s.users[u.UserID] = &cp
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) List(ctx context.Context, filter user.Filter, limit, offset int) ([]*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*user.User
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if !u.Matches(filter.Search) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

// SessionRepository implements session.Repository.
type SessionRepository struct {
	s *Store
}

func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextSessionID++
	sess.ID = r.s.nextSessionID
	cp := *sess
	r.s.sessions[sess.TokenHash] = &cp
	return nil
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, tokenHash)
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID, keep uuid.UUID) (int, error) {
	return r.deleteWhere(func(sess *session.Session) bool {
		return sess.UserID == userID && sess.SessionID != keep
	}), nil
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	at = at.UTC()
	for _, sess := range r.s.sessions {
		if sess.SessionID == sessionID {
			sess.LastSeenAt = &at
		}
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.deleteWhere(func(sess *session.Session) bool { return sess.IsExpired(now) }), nil
}

func (r *SessionRepository) deleteWhere(match func(*session.Session) bool) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for hash, sess := range r.s.sessions {
		if match(sess) {
			delete(r.s.sessions, hash)
			n++
		}
	}
	return n
}
