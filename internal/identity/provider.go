// AngelaMos | 2026
// provider.go

package identity

import (
	"context"
)

// Account is a citizen account held by the external identity provider that
// mobile clients sign in against.
type Account struct {
	UID   string
	Email string
}

// Provider manages accounts on the identity provider. LookupByEmail fails
// with core.ErrNotFound when no account exists for email.
type Provider interface {
	LookupByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, email, password string) (*Account, error)
	Update(ctx context.Context, uid, password string) error
}
