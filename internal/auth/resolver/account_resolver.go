package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/account"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
)

// ErrUnverifiedLink is returned when a provider asserts an email that an
// existing account already uses but does not vouch for it. Linking on an
// unverified address would let anyone claim that account.
var ErrUnverifiedLink = errors.New("resolver: provider email not verified for existing account")

// AccountResolver resolves identities against the account repository.
type AccountResolver struct {
	accounts account.Repository
}

func NewAccountResolver(accounts account.Repository) *AccountResolver {
	return &AccountResolver{accounts: accounts}
}

func (r *AccountResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (*account.Account, error) {

	if err := identity.Validate(); err != nil {
		return nil, err
	}

	// 1. Try identity lookup (provider + provider_user_id)
	a, err := r.accounts.FindByIdentity(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	// 2. Try email-based linking (existing account, new provider)
	a, err = r.linkByEmail(ctx, identity)
	if err == nil || !errors.Is(err, account.ErrNotFound) {
		return a, err
	}

	// 3. Create new account
	a, err = r.accounts.Create(ctx, &account.Account{
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Role:          auth.RoleUser,
	})
	if errors.Is(err, account.ErrAlreadyExists) {
		// Lost a race with a concurrent first login for the same email.
		return r.linkByEmail(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	// 4. Create identity mapping
	if err := r.accounts.LinkIdentity(ctx, a.ID, identity.Provider, identity.ProviderUserID); err != nil {
		return nil, fmt.Errorf("resolver: link identity: %w", err)
	}

	logger.Info("account created from federated identity", map[string]any{
		"provider": identity.Provider,
		"user_id":  a.ID,
	})

	return a, nil
}

func (r *AccountResolver) linkByEmail(ctx context.Context, identity *auth.Identity) (*account.Account, error) {
	a, err := r.accounts.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	if !identity.EmailVerified {
		return nil, ErrUnverifiedLink
	}

	if err := r.accounts.LinkIdentity(ctx, a.ID, identity.Provider, identity.ProviderUserID); err != nil {
		return nil, fmt.Errorf("resolver: link identity: %w", err)
	}
	return a, nil
}
