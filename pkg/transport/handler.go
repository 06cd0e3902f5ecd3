package transport

import (
	"context"

	"github.com/rhuss/rollcall/pkg/api"
)

// AccountService handles the login and registration operations behind
// the auth routes. The HTTP adapter decodes and validates request bodies,
// then delegates here.
type AccountService interface {
	// Login verifies credentials and issues an access token. clientKey
	// identifies the caller for rate limiting (the client IP over HTTP).
	Login(ctx context.Context, clientKey, username, password string) (*api.TokenResponse, error)

	// Register creates a new account with the default authorities.
	Register(ctx context.Context, username, password string) (*api.Account, error)
}

// HealthChecker reports whether a backing dependency is usable.
// The account stores implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
