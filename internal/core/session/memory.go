// Package session keeps per-user chat sessions: storage, cookies, locking and expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
)

var _ core.SessionStore = (*MemoryStore)(nil)

// MemoryStore is a process-local SessionStore. Sessions are copied on the way
// in and out so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	out := s.Clone()
	return &out, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return core.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = sess.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Expired(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) DeleteIdle(_ context.Context, id string, before time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || !s.UpdatedAt.Before(before) {
		return nil, nil
	}
	delete(m.sessions, id)
	return &s, nil
}

func (m *MemoryStore) Close() error { return nil }
