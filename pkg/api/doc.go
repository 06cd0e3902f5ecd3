// Package api defines the wire types shared by the rollcall authentication
// core: accounts, login and registration payloads, and the structured error
// envelope returned by every endpoint.
//
// The package has no external dependencies and performs no I/O.
//
// Core types:
//   - [Account]: identity record owned by the account store
//   - [LoginRequest], [RegisterRequest]: credential payloads
//   - [TokenResponse]: successful login result
//   - [APIError]: structured error with code, message, and optional retry hint
package api
