package http

import (
	"errors"
	"log/slog"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/login"
	"github.com/rhuss/rollcall/pkg/storage"
)

// UsernameTakenMessage is returned with 409 when registration hits an
// existing username.
const UsernameTakenMessage = "Username already exists"

// APIErrorFrom translates a service error into the API error sent to the
// client. Unknown errors become a generic INTERNAL_ERROR; their detail is
// logged, never returned.
func APIErrorFrom(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var rl *login.RateLimitedError
	if errors.As(err, &rl) {
		return api.NewRateLimitedError(auth.RetryAfterSeconds(rl.RetryAfter))
	}

	switch {
	case errors.Is(err, login.ErrInvalidCredentials):
		return api.NewInvalidCredentialsError()
	case errors.Is(err, login.ErrUsernameTaken), errors.Is(err, storage.ErrConflict):
		return api.NewConflictError(UsernameTakenMessage)
	case errors.Is(err, auth.ErrUnauthenticated):
		return api.NewUnauthorizedError("Authentication required")
	case errors.Is(err, auth.ErrForbidden):
		return api.NewForbiddenError("Access denied")
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("Resource not found")
	default:
		slog.Error("unhandled service error", "error", err)
		return api.NewInternalError()
	}
}
