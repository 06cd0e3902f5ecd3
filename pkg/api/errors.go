package api

import "fmt"

// ErrorCode is the machine-readable category of an API error.
type ErrorCode string

const (
	ErrorCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrorCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// APIError represents a structured API error.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`

	// RetryAfter is the number of seconds a rate-limited client should wait.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// InvalidCredentialsMessage is the only message ever returned for a failed
// login. Unknown usernames and wrong passwords must be indistinguishable.
const InvalidCredentialsMessage = "Invalid username or password"

// NewValidationError creates an APIError for a malformed or invalid request field.
func NewValidationError(param, message string) *APIError {
	return &APIError{
		Code:    ErrorCodeValidation,
		Param:   param,
		Message: message,
	}
}

// NewInvalidCredentialsError creates the generic login failure.
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:    ErrorCodeInvalidCredentials,
		Message: InvalidCredentialsMessage,
	}
}

// NewUnauthorizedError creates an APIError for a missing, malformed, or expired token.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:    ErrorCodeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError creates an APIError for an authenticated caller lacking an authority.
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:    ErrorCodeForbidden,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:    ErrorCodeNotFound,
		Message: message,
	}
}

// NewMethodNotAllowedError creates an APIError for a known path requested
// with an unsupported method.
func NewMethodNotAllowedError(method, path string) *APIError {
	return &APIError{
		Code:    ErrorCodeMethodNotAllowed,
		Message: fmt.Sprintf("Method %s is not allowed for %s", method, path),
	}
}

// NewConflictError creates an APIError for a duplicate resource.
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:    ErrorCodeConflict,
		Message: message,
	}
}

// NewRateLimitedError creates an APIError for a rejected login attempt.
func NewRateLimitedError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:       ErrorCodeRateLimited,
		Message:    fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", retryAfterSeconds),
		RetryAfter: retryAfterSeconds,
	}
}

// NewInternalError creates the generic server error. The message never
// carries details of the underlying failure.
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrorCodeInternal,
		Message: "An unexpected error occurred.",
	}
}
