package auth

import "errors"

var ErrIncompleteIdentity = errors.New("auth: identity is missing provider, subject or email")

// Identity is what an external provider asserts about the person who just
// signed in. Resolving it to an account is the resolver's job.
type Identity struct {
	Provider       string // registry name, "google" or "keycloak"
	ProviderUserID string // the provider's stable subject ("sub")
	Email          string
	EmailVerified  bool // the provider vouches for Email
}

// Validate rejects identities that cannot be linked to an account.
func (i *Identity) Validate() error {
	if i == nil || i.Provider == "" || i.ProviderUserID == "" || i.Email == "" {
		return ErrIncompleteIdentity
	}
	return nil
}
