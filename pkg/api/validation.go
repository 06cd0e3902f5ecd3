package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for credential validation.
type ValidationConfig struct {
	MinUsernameLength int
	MaxUsernameLength int
	MinPasswordLength int

	// MaxPasswordBytes bounds the password size. bcrypt rejects inputs
	// longer than 72 bytes.
	MaxPasswordBytes int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinUsernameLength: 3,
		MaxUsernameLength: 20,
		MinPasswordLength: 6,
		MaxPasswordBytes:  72,
	}
}

// ValidateRegister checks a RegisterRequest. It returns an *APIError
// describing the first validation failure, or nil if the request is valid.
func ValidateRegister(req *RegisterRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Username) == "" {
		return NewValidationError("username", "username is required")
	}

	n := utf8.RuneCountInString(req.Username)
	if n < cfg.MinUsernameLength || (cfg.MaxUsernameLength > 0 && n > cfg.MaxUsernameLength) {
		return NewValidationError("username",
			fmt.Sprintf("username must be between %d and %d characters", cfg.MinUsernameLength, cfg.MaxUsernameLength))
	}

	if strings.TrimSpace(req.Password) == "" {
		return NewValidationError("password", "password is required")
	}

	if utf8.RuneCountInString(req.Password) < cfg.MinPasswordLength {
		return NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters", cfg.MinPasswordLength))
	}

	if cfg.MaxPasswordBytes > 0 && len(req.Password) > cfg.MaxPasswordBytes {
		return NewValidationError("password",
			fmt.Sprintf("password must not exceed %d bytes", cfg.MaxPasswordBytes))
	}

	return nil
}

// ValidateLogin checks that a LoginRequest carries both fields. Length rules
// are not applied at login so that the failure stays indistinguishable from
// a wrong password.
func ValidateLogin(req *LoginRequest) *APIError {
	if strings.TrimSpace(req.Username) == "" {
		return NewValidationError("username", "username is required")
	}
	if req.Password == "" {
		return NewValidationError("password", "password is required")
	}
	return nil
}
