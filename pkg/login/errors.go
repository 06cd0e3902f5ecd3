package login

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is matched by every *RateLimitedError.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken is returned by Register for an existing username.
	ErrUsernameTaken = errors.New("username already exists")
)

// RateLimitedError reports a throttled login attempt and how long the
// client should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
