package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	values    map[string][]byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Each read or write extends
// the session's lifetime by ttl.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]*entry)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	now := m.now()
	if now.After(e.expiresAt) {
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return false, nil
	}
	e.expiresAt = now.Add(m.ttl)
	raw, ok := e.values[key]
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, decode(raw, dst)
}

func (m *MemoryStore) Put(_ context.Context, sessionID, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok || m.now().After(e.expiresAt) {
		e = &entry{values: make(map[string][]byte)}
		m.sessions[sessionID] = e
	}
	e.values[key] = raw
	e.expiresAt = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStore) Forget(_ context.Context, sessionID, key string) error {
	m.mu.Lock()
	if e, ok := m.sessions[sessionID]; ok {
		delete(e.values, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
