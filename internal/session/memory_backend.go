package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session  Session
	deadline time.Time
}

// MemoryBackend is the single-process fallback used when no Redis is
// configured. Entries past their ttl are dropped when read.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithClock(time.Now)
}

func NewMemoryBackendWithClock(now func() time.Time) *MemoryBackend {
	return &MemoryBackend{
		sessions: make(map[string]memoryEntry),
		now:      now,
	}
}

func (m *MemoryBackend) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.SessionID] = memoryEntry{session: s, deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if !e.deadline.After(m.now()) {
		delete(m.sessions, sessionID)
		return nil, nil
	}

	s := e.session
	return &s, nil
}

func (m *MemoryBackend) Remove(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// Len reports the number of retained entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
