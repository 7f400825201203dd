package auth

import (
	"context"

	"scholarship-service/internal/account"
	"scholarship-service/internal/identity"

	"github.com/google/uuid"
)

// Principal is the authenticated caller. It is built once per request by
// Authenticate and only ever passed by value.
type Principal struct {
	AccountID uuid.UUID
	Email     string
	Role      account.Role
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...account.Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

type identityKey struct{}

type verifiedToken struct {
	identity identity.Identity
	raw      string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// WithIdentity attaches a verified provider identity and the token it came from.
func WithIdentity(ctx context.Context, id identity.Identity, token string) context.Context {
	return context.WithValue(ctx, identityKey{}, verifiedToken{identity: id, raw: token})
}

func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(verifiedToken)
	return v.identity, ok
}

func TokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityKey{}).(verifiedToken)
	return v.raw, ok
}
