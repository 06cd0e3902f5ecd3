package auth

import "context"

// identityKey is a private type for the identity context key.
type identityKey struct{}

// admittedKey marks a request that already passed the login rate limit.
type admittedKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity.
// Returns nil if no identity is set.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}

// MarkAdmitted records that the rate-limit stage consumed a token for this
// request, so downstream login processing must not consume a second one.
func MarkAdmitted(ctx context.Context) context.Context {
	return context.WithValue(ctx, admittedKey{}, true)
}

// Admitted reports whether the rate-limit stage already admitted the request.
func Admitted(ctx context.Context) bool {
	v, _ := ctx.Value(admittedKey{}).(bool)
	return v
}
