package auth

import (
	"context"
	"errors"
)

// ErrMissingIdentity is returned when an authenticated context carries claims
// without a subject.
var ErrMissingIdentity = errors.New("authenticated request has no user identity")

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the claims stored in ctx, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// Actor returns the caller's user id, or "" for anonymous callers.
func Actor(ctx context.Context) (string, error) {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return "", nil
	}
	if claims.Subject == "" {
		return "", ErrMissingIdentity
	}
	return claims.Subject, nil
}
