package google

import (
	"context"
	"errors"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider"
)

const (
	providerName = "google"
	issuer       = "https://accounts.google.com"
)

func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*provider.OIDCProvider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	return provider.NewOIDC(ctx, provider.OIDCConfig{
		Name:         providerName,
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	})
}
