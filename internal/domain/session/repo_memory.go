package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/notewriter/internal/domain/selection"
)

type memoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Session
}

// NewMemoryRepo returns a process-local repository. Sessions are lost on
// restart.
func NewMemoryRepo() Repository {
	return &memoryRepo{items: make(map[uuid.UUID]*Session)}
}

func (r *memoryRepo) Create(_ context.Context, s *Session) error {
	s.ID = uuid.New()
	if s.Space == nil {
		s.Space = selection.NewSpace()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.VersionID == 0 {
		s.VersionID = 1
	}

	r.mu.Lock()
	r.items[s.ID] = s.Clone()
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[s.ID]
	if !ok {
		return ErrNotFound
	}
	next := s.Clone()
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.items[s.ID] = next
	s.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) DeleteAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items)
	r.items = make(map[uuid.UUID]*Session)
	return n, nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Session, int, error) {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.items))
	for _, s := range r.items {
		all = append(all, s.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}
