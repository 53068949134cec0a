package candidate

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory candidate store for demo/development.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]*Candidate // by ID
	emails     map[string]string     // email → ID
}

// NewMemoryStore creates a new in-memory candidate store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]*Candidate),
		emails:     make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, c *Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(c.Email)
	if _, exists := m.emails[email]; exists {
		return ErrEmailTaken
	}

	cp := *c
	m.candidates[c.ID] = &cp
	m.emails[email] = c.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.candidates[id]
	if !ok {
		return nil, ErrCandidateNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrCandidateNotFound
	}
	c := m.candidates[id]
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, c *Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.candidates[c.ID]; !ok {
		return ErrCandidateNotFound
	}
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.candidates[id]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
