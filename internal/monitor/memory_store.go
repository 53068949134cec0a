package monitor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store for demo/development mode.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Return a copy to prevent races on the shared pointer
	cp := *sess
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *MemoryStore) ListByCandidate(_ context.Context, candidateID string, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.CandidateID == candidateID {
			cp := *s
			result = append(result, &cp)
		}
	}

	// Sort by started_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListIdle(_ context.Context, cutoff time.Time, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if !s.Active {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			cp := *s
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryViolationLog is an in-memory append-only violation log.
type MemoryViolationLog struct {
	violations map[string][]*Violation // sessionID → ordered records
	mu         sync.RWMutex
}

// NewMemoryViolationLog creates a new in-memory violation log.
func NewMemoryViolationLog() *MemoryViolationLog {
	return &MemoryViolationLog{
		violations: make(map[string][]*Violation),
	}
}

func (m *MemoryViolationLog) Append(_ context.Context, v *Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *v
	m.violations[v.SessionID] = append(m.violations[v.SessionID], &cp)
	return nil
}

func (m *MemoryViolationLog) ListBySession(_ context.Context, sessionID string, limit int) ([]*Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.violations[sessionID]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	// Return copies, insertion order preserved
	result := make([]*Violation, len(records))
	for i, v := range records {
		cp := *v
		result[i] = &cp
	}
	return result, nil
}

func (m *MemoryViolationLog) CountBySession(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.violations[sessionID]), nil
}

// Compile-time assertion that MemoryViolationLog implements ViolationLog.
var _ ViolationLog = (*MemoryViolationLog)(nil)
