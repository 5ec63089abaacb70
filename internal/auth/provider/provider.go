package provider

import (
	"context"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

// OAuthProvider is one federated sign-in option. It speaks the authorization
// code flow and reports identity facts; accounts and sessions are handled by
// the caller.
type OAuthProvider interface {
	Name() string

	// AuthCodeURL builds the redirect to the provider's consent page. The
	// caller owns state and the PKCE challenge.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode redeems code with the matching PKCE verifier.
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*auth.Identity, error)
}

var _ OAuthProvider = (*OIDCProvider)(nil)
