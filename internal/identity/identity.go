// Package identity verifies tokens issued by the external identity provider
// and queries the provider for the live state of an account.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is the only error callers see. Expired, malformed, wrongly
// signed tokens and provider outages all collapse into it.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is what the provider vouches for.
type Identity struct {
	ProviderID       string
	Email            string
	ProviderVerified bool
}

type Provider interface {
	// Verify checks the token signature and claims locally against the provider keys.
	Verify(ctx context.Context, token string) (*Identity, error)
	// Lookup fetches the current account state from the provider, bypassing token claims.
	Lookup(ctx context.Context, providerID string) (*Identity, error)
	// SendVerificationEmail asks the provider to mail a verification link to the token owner.
	SendVerificationEmail(ctx context.Context, token string) error
}
