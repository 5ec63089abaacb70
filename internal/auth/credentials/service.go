package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/account"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email")

	// ErrUnavailable wraps account store failures and timeouts.
	ErrUnavailable = errors.New("credentials: account store unavailable")
)

// LockedError reports an active lock. It matches ErrAccountLocked.
type LockedError struct {
	Until      time.Time
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Result is what a successful authentication yields.
type Result struct {
	UserID string
	Email  string
	Role   auth.Role
}

type Service struct {
	accounts     account.Repository
	threshold    int
	lockDuration time.Duration
	timeout      time.Duration
	now          func() time.Time
}

type Option func(*Service)

// WithLockout sets how many consecutive failures lock an account and for how long.
func WithLockout(threshold int, d time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
		if d > 0 {
			s.lockDuration = d
		}
	}
}

// WithTimeout bounds each account store call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(accounts account.Repository, opts ...Option) *Service {
	s := &Service{
		accounts:     accounts,
		threshold:    5,
		lockDuration: 15 * time.Minute,
		timeout:      2 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
) (string, error) {

	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.accounts.Create(ctx, &account.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleUser,
	})
	if errors.Is(err, account.ErrAlreadyExists) {
		return "", ErrAlreadyRegistered
	}
	if err != nil {
		return "", unavailable(err)
	}

	return a.ID, nil
}

// Authenticate runs the ordered credential checks and keeps the lockout
// counters current. The caller creates the session on success.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (Result, error) {

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 1. Find account. Unknown email looks exactly like a wrong password.
	a, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, account.ErrNotFound) {
		return Result{}, ErrInvalidCredentials
	}
	if err != nil {
		return Result{}, unavailable(err)
	}

	now := s.now()

	// 2. Lock still in force
	if a.IsLocked(now) {
		return Result{}, &LockedError{Until: *a.LockedUntil, RetryAfter: a.LockRemaining(now)}
	}

	// 3. Verified email
	if !a.EmailVerified {
		return Result{}, ErrEmailNotVerified
	}

	// 4. Verify password
	if a.PasswordHash == "" || VerifyPassword(a.PasswordHash, password) != nil {
		state, err := s.accounts.RecordFailedLogin(ctx, a.ID, s.threshold, now.Add(s.lockDuration))
		if err != nil {
			return Result{}, unavailable(err)
		}
		if state.IsLocked(now) {
			logger.Warn("account locked after failed logins", map[string]any{
				"user_id":  a.ID,
				"attempts": state.FailedAttempts,
				"until":    state.LockedUntil.UTC().Format(time.RFC3339),
			})
		}
		return Result{}, ErrInvalidCredentials
	}

	// 5. Success resets the counters
	if err := s.accounts.RecordSuccessfulLogin(ctx, a.ID, now); err != nil {
		return Result{}, unavailable(err)
	}

	return Result{UserID: a.ID, Email: a.Email, Role: a.Role}, nil
}
