package keycloak

import (
	"context"
	"errors"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider"
)

const providerName = "keycloak"

// New initializes a Keycloak OIDC provider using discovery.
// issuer must be the realm issuer URL, e.g.
// http://keycloak:8080/realms/rk-institution. The client is public, so
// PKCE is what protects the code exchange.
func New(
	ctx context.Context,
	issuer string,
	clientID string,
	redirectURL string,
	publicBaseURL string,
) (*provider.OIDCProvider, error) {

	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, errors.New("keycloak oauth config missing required fields")
	}

	return provider.NewOIDC(ctx, provider.OIDCConfig{
		Name:          providerName,
		Issuer:        issuer,
		ClientID:      clientID,
		RedirectURL:   redirectURL,
		PublicBaseURL: publicBaseURL,
	})
}
