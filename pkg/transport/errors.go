package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rhuss/rollcall/pkg/api"
)

// HTTPStatusFromError maps an APIError code to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Code {
	case api.ErrorCodeValidation:
		return http.StatusBadRequest
	case api.ErrorCodeInvalidCredentials, api.ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorCodeForbidden:
		return http.StatusForbidden
	case api.ErrorCodeNotFound:
		return http.StatusNotFound
	case api.ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case api.ErrorCodeConflict:
		return http.StatusConflict
	case api.ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and, for
// rate-limit errors, the Retry-After header before writing the status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	WriteJSON(w, statusCode, api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error code.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
