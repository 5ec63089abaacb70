package account

import (
	"context"
	"errors"
	"time"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

var (
	ErrNotFound      = errors.New("account: not found")
	ErrAlreadyExists = errors.New("account: email already registered")
)

// LoginAttemptState is the lockout bookkeeping attached to an account.
// A lock is only in force while LockedUntil is in the future; a past value
// is left in place and simply ignored.
type LoginAttemptState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether the lock is still in force at now.
func (s LoginAttemptState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// LockRemaining is zero when the account is not locked.
func (s LoginAttemptState) LockRemaining(now time.Time) time.Duration {
	if !s.IsLocked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

type Account struct {
	ID            string
	Email         string
	EmailVerified bool
	// PasswordHash is empty for accounts that only ever signed in through a
	// federated provider.
	PasswordHash string
	Role         auth.Role
	LoginAttemptState
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository is the durable account collaborator. Counter updates must be
// atomic per account so concurrent failures are never lost.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) (*Account, error)

	// RecordFailedLogin increments the failure counter and, once it reaches
	// threshold, sets LockedUntil to lockUntil. It returns the new state.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (LoginAttemptState, error)
	// RecordSuccessfulLogin resets the counter, clears the lock and stamps LastLogin.
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error

	FindByIdentity(ctx context.Context, provider, providerUserID string) (*Account, error)
	// LinkIdentity is idempotent for an already linked (provider, subject) pair.
	LinkIdentity(ctx context.Context, accountID, provider, providerUserID string) error
}
