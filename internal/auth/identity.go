package auth

import (
	"context"
	"time"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID      int64
	SpotifyID   string
	Email       string
	AccessToken string // cached upstream access token, when persisted
	TokenID     string
	ExpiresAt   time.Time
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity attached by the auth middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
