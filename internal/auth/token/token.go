// Package token signs and decodes the identity token carried by the session
// cookie. The token only names a session; liveness is always confirmed
// against the session store.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

var (
	ErrEmptySecret  = errors.New("token: empty secret")
	ErrInvalidToken = errors.New("token: invalid token")
)

// Claims is the signed identity payload.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the caller identity.
func (c *Claims) Principal() *auth.Principal {
	return &auth.Principal{
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      auth.ParseRole(c.Role),
		SessionID: c.SessionID,
	}
}

// IssuedAtTime is the zero time when the claim is missing.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	return NewIssuerWithClock(secret, time.Now)
}

func NewIssuerWithClock(secret string, now func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Issuer{secret: []byte(secret), now: now}, nil
}

// Issue signs an HS256 token for p that expires together with its session.
func (i *Issuer) Issue(p auth.Principal, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		Role:      p.Role.String(),
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(i.now()),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// Decode verifies signature and expiry. Every failure collapses into
// ErrInvalidToken so callers treat it exactly like a missing token.
func (i *Issuer) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
