package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/db"
)

const pgUniqueViolation = "23505"

const accountColumns = `u.id, u.email, u.email_verified, u.password_hash, u.role,
	u.failed_attempts, u.locked_until, u.last_login, u.created_at, u.updated_at`

type PostgresRepository struct {
	db db.DBTX
}

func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		id          uuid.UUID
		role        string
		hash        sql.NullString
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
		a           Account
	)

	err := row.Scan(
		&id,
		&a.Email,
		&a.EmailVerified,
		&hash,
		&role,
		&a.FailedAttempts,
		&lockedUntil,
		&lastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account: db error: %w", err)
	}

	a.ID = id.String()
	a.PasswordHash = hash.String
	a.Role = auth.ParseRole(role)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}

	return &a, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM users u
		WHERE LOWER(u.email) = LOWER($1)`

	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		// Not a uuid, so it cannot name a row.
		return nil, ErrNotFound
	}

	query := `SELECT ` + accountColumns + `
		FROM users u
		WHERE u.id = $1`

	return scanAccount(r.db.QueryRowContext(ctx, query, uid))
}

func (r *PostgresRepository) Create(ctx context.Context, a *Account) (*Account, error) {
	if a.Role == "" {
		a.Role = auth.RoleUser
	}

	query := `INSERT INTO users (email, email_verified, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query,
		a.Email,
		a.EmailVerified,
		sql.NullString{String: a.PasswordHash, Valid: a.PasswordHash != ""},
		a.Role.String(),
	).Scan(&id, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("account: db error: %w", err)
	}

	a.ID = id.String()
	return a, nil
}

// RecordFailedLogin runs as a single statement so parallel failures for the
// same account serialize on the row lock.
func (r *PostgresRepository) RecordFailedLogin(
	ctx context.Context,
	id string,
	threshold int,
	lockUntil time.Time,
) (LoginAttemptState, error) {
	query := `UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts, locked_until`

	var (
		state       LoginAttemptState
		lockedUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id, threshold, lockUntil).
		Scan(&state.FailedAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoginAttemptState{}, ErrNotFound
		}
		return LoginAttemptState{}, fmt.Errorf("account: db error: %w", err)
	}

	if lockedUntil.Valid {
		t := lockedUntil.Time
		state.LockedUntil = &t
	}
	return state, nil
}

func (r *PostgresRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0,
		    locked_until = NULL,
		    last_login = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("account: db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("account: db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) FindByIdentity(ctx context.Context, provider, providerUserID string) (*Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM users u
		JOIN identities i ON i.user_id = u.id
		WHERE i.provider = $1
		  AND i.provider_user_id = $2`

	return scanAccount(r.db.QueryRowContext(ctx, query, provider, providerUserID))
}

func (r *PostgresRepository) LinkIdentity(ctx context.Context, accountID, provider, providerUserID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
	`, accountID, provider, providerUserID)
	if err != nil {
		return fmt.Errorf("account: db error: %w", err)
	}
	return nil
}
