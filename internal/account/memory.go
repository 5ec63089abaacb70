package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

type identityKey struct {
	provider string
	subject  string
}

// MemoryRepository keeps accounts in process memory. It backs single-instance
// development setups that run without DATABASE_DSN.
type MemoryRepository struct {
	mu         sync.Mutex
	byID       map[string]*Account
	byEmail    map[string]string
	identities map[identityKey]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*Account),
		byEmail:    make(map[string]string),
		identities: make(map[identityKey]string),
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clone keeps callers from mutating stored state outside the lock.
func clone(a *Account) *Account {
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (m *MemoryRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (m *MemoryRepository) Create(_ context.Context, a *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeEmail(a.Email)
	if _, exists := m.byEmail[key]; exists {
		return nil, ErrAlreadyExists
	}

	if a.Role == "" {
		a.Role = auth.RoleUser
	}
	now := m.now()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now

	m.byID[a.ID] = clone(a)
	m.byEmail[key] = a.ID
	return a, nil
}

func (m *MemoryRepository) RecordFailedLogin(
	_ context.Context,
	id string,
	threshold int,
	lockUntil time.Time,
) (LoginAttemptState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return LoginAttemptState{}, ErrNotFound
	}

	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		t := lockUntil
		a.LockedUntil = &t
	}
	a.UpdatedAt = m.now()

	return clone(a).LoginAttemptState, nil
}

func (m *MemoryRepository) RecordSuccessfulLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}

	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastLogin = &at
	a.UpdatedAt = m.now()
	return nil
}

func (m *MemoryRepository) FindByIdentity(_ context.Context, provider, providerUserID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.identities[identityKey{provider, providerUserID}]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) LinkIdentity(_ context.Context, accountID, provider, providerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[accountID]; !ok {
		return ErrNotFound
	}

	key := identityKey{provider, providerUserID}
	if _, linked := m.identities[key]; !linked {
		m.identities[key] = accountID
	}
	return nil
}

// SetEmailVerified flips the verification flag. Email delivery lives outside
// this service, so this is how local tooling and tests confirm an address.
func (m *MemoryRepository) SetEmailVerified(id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.EmailVerified = verified
	a.UpdatedAt = m.now()
	return nil
}
