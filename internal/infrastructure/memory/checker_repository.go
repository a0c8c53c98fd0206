package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/checker"
)

// CheckerRepository implements checker.Repository.
type CheckerRepository struct {
	s *Store
}

func (r *CheckerRepository) Create(ctx context.Context, c *checker.Checker) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.checkers {
		if existing.UserID == c.UserID {
			return checker.ErrAlreadyRegistered
		}
	}
	cp := *c
	r.s.checkers[c.ID] = &cp
	return nil
}

func (r *CheckerRepository) Update(ctx context.Context, c *checker.Checker) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.checkers[c.ID]; !ok {
		return checker.ErrNotFound
	}
	cp := *c
	r.s.checkers[c.ID] = &cp
	return nil
}

func (r *CheckerRepository) GetByID(ctx context.Context, id uuid.UUID) (*checker.Checker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.checkers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *CheckerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*checker.Checker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.checkerByUser(userID), nil
}

func (r *CheckerRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*checker.Checker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*checker.Checker
	for _, c := range r.s.checkers {
		if activeOnly && !c.IsActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// checkerByUser must be called with the store lock held.
func (s *Store) checkerByUser(userID uuid.UUID) *checker.Checker {
	for _, c := range s.checkers {
		if c.UserID == userID {
			cp := *c
			return &cp
		}
	}
	return nil
}
