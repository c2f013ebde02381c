// Package auth identifies the customer behind an API request.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for a missing, unknown or inactive API key.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity bound to a validated API key.
type APIKeyInfo struct {
	ID        string
	KeyHash   string
	Name      string
	LoginName string
	Scopes    []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated key.
func WithPrincipal(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, principalKey{}, info)
}

// PrincipalFrom returns the authenticated key of the request, if any.
func PrincipalFrom(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(principalKey{}).(*APIKeyInfo)
	return info, ok && info != nil
}
