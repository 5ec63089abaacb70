package resolver

import (
	"context"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/account"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

// Resolver determines which internal account an external identity belongs to.
// It is the ONLY place where identity-to-account mapping logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (*account.Account, error)
}
