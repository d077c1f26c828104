package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for missing, unknown, or mismatched API keys.
var ErrUnauthorized = errors.New("unauthorized")

// Scopes recognised on API keys.
const (
	ScopeCustomer = "customer"
	ScopeAdmin    = "admin"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key belongs to a customer; requests carrying the key act as that
// customer.
type APIKeyInfo struct {
	ID         string
	CustomerID string
	KeyHash    string
	Name       string
	Scopes     []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
