package repository

import (
	"context"
	"sync"

	"storefront/sessioncore/internal/session/domain"
)

// MemoryStore is an in-memory Store. The record does not survive the process; used in tests and ephemeral mode.
type MemoryStore struct {
	mu sync.RWMutex
	s  *domain.Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session, or nil.
func (m *MemoryStore) Load(ctx context.Context) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return nil, nil
	}
	s2 := *m.s
	return &s2, nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(ctx context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s2 := *s
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s2
	return nil
}

// Delete clears the stored session.
func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
