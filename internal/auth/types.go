package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidToken is returned when a JWT fails validation
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidAPIKey is returned when an API key matches no configured hash
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrMissingCredentials is returned when a request carries no credentials
	ErrMissingCredentials = errors.New("missing credentials")
)

// ContextKey is the key type for context values
type ContextKey string

// PrincipalContextKey is the context key for the authenticated principal
const PrincipalContextKey ContextKey = "principal"

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string `json:"subject"`
	Method  string `json:"method"` // "jwt", "api_key", or "anonymous"
}

// WithPrincipal attaches a principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// GetPrincipal extracts the principal from a context.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok
}
