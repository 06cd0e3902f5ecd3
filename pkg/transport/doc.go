// Package transport defines the handler interfaces and the net/http
// middleware chain shared by the rollcall HTTP surface.
//
// # Handler Interfaces
//
// AccountService is the contract between the HTTP adapter in
// pkg/transport/http and the login pipeline in pkg/login. HealthChecker
// is implemented by the account stores and backs the health endpoint.
//
// # Middleware
//
// Middleware wraps http.Handler and composes with Chain, outermost first.
// Built-in middleware provides CORS headers, panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. The request gate
// in pkg/auth is built from the same Middleware type.
//
// # Errors
//
// WriteAPIError renders an api.APIError inside the {"error": {...}}
// envelope with the status derived from its code.
package transport
