// Package requestctx carries per-request identity through context.
package requestctx

import "context"

// Identity is the authenticated citizen attached to a request.
type Identity struct {
	// UserID is the integer auth primary key.
	UserID int64
	// UUID is the public user identifier every domain service keys on.
	UUID string
}

// identityContextKey is the context key for authenticated user identity.
type identityContextKey struct{}

// WithIdentity stores the authenticated identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored in context, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
