package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

// ErrUnavailable wraps every backend failure, including timeouts. Callers
// must treat it as a system error, never as "not authenticated".
var ErrUnavailable = errors.New("session: store unavailable")

// Session represents an authenticated user session.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend is the durable key-value collaborator behind Store. Load returns
// (nil, nil) for a missing key. Implementations are expected to expire keys
// on their own once ttl elapses, otherwise abandoned sessions accumulate.
type Backend interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*Session, error)
	Remove(ctx context.Context, sessionID string) error
}

// Store owns the session lifecycle: absent -> active (sliding) -> absent.
// There is no observable expired state; past ExpiresAt a session reads as
// absent.
type Store struct {
	backend Backend
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time
}

type StoreOption func(*Store)

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.timeout = d
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(backend Backend, maxAge time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		maxAge:  maxAge,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAge is the sliding lifetime granted on create and on every extension.
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

// Create persists a fresh session and returns its id.
func (s *Store) Create(ctx context.Context, userID, email string, role auth.Role) (string, error) {
	if userID == "" {
		return "", errors.New("session: missing user_id")
	}

	id, err := GenerateID()
	if err != nil {
		return "", err
	}

	now := s.now()
	sess := Session{
		SessionID: id,
		UserID:    userID,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.maxAge),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.Save(ctx, sess, s.maxAge); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return id, nil
}

// Get returns the live session or (nil, nil) when it is missing or expired.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.backend.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if sess == nil || !sess.ExpiresAt.After(s.now()) {
		return nil, nil
	}

	return sess, nil
}

// Extend pushes ExpiresAt to now+maxAge and returns the renewed session.
// A missing or expired session is a no-op returning (nil, nil).
func (s *Store) Extend(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	sess.ExpiresAt = s.now().Add(s.maxAge)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.Save(ctx, *sess, s.maxAge); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return sess, nil
}

// Delete removes the session. Deleting an absent session succeeds.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.backend.Remove(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
